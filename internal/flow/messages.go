package flow

// User-facing message copy. All outbound copy lives here so flow logic and
// message text cannot drift independently.

const (
	// Guest order lookup.
	msgGuestAskHasData = "Para buscar tu pedido sin iniciar sesión necesito el número de pedido " +
		"y al menos dos datos de la compra: DNI, nombre, apellido o teléfono. ¿Los tenés a mano?"
	msgGuestAuthRequired = "Sin esos datos no puedo verificar el pedido. " +
		"Podés iniciar sesión en la tienda para ver tus pedidos, o escribinos con el número de pedido cuando lo tengas."
	msgGuestAnswerUnclear = "Perdón, no te entendí. ¿Tenés el número de pedido y algún dato de la compra (DNI, nombre y apellido o teléfono)? Respondeme sí o no."
	msgGuestVerifyFailed  = "No encontré ningún pedido que coincida con esos datos. Revisá el número de pedido y los datos e intentá de nuevo."
	msgGuestInvalidData   = "Los datos que enviaste no tienen un formato válido. Revisalos e intentá de nuevo."
	msgGuestUnauthorized  = "No puedo verificar ese pedido con los datos enviados. Si la compra es tuya, iniciá sesión en la tienda para verla."
	msgGuestThrottled     = "Hiciste muchas consultas seguidas. Esperá unos minutos e intentá de nuevo."

	// Orders.
	msgOrdersAuthRequired = "Para consultar tus pedidos necesitás iniciar sesión en la tienda."
	msgOrdersNotFound     = "No encontré ese pedido en tu cuenta. Revisá el número e intentá de nuevo."
	msgOrdersConflict     = "Estoy viendo una inconsistencia temporal en el estado de tu pedido (%q y %q según la fuente). " +
		"Volvé a intentar en unos minutos o pedime hablar con una persona."
	msgOrdersNoOrders = "No veo pedidos en tu cuenta todavía."

	// Escalation.
	msgEscalationOffer   = "¿Querés que derive tu caso a una persona del equipo para revisar la cancelación?"
	msgEscalationDone    = "Listo, derivé tu caso por el pedido #%s al equipo. Te van a contactar a la brevedad."
	msgEscalationNoOrder = "Listo, derivé tu caso al equipo. Te van a contactar a la brevedad."
	msgEscalationDecline = "Dale, no lo derivo. ¿Te puedo ayudar con otra cosa?"
	msgEscalationReask   = "Perdón, no te entendí. ¿Querés que derive tu caso a una persona? Respondeme sí o no."

	// Recommendations disambiguation.
	msgDisambigCategoryOrVolume = "Tenemos un montón de cosas de %s. ¿Buscás mangas, cómics o figuras? Si ya sabés el tomo, decime cuál."
	msgDisambigVolume           = "¿Qué tomo de %s buscás? Decime el número, \"el último\" o \"desde el principio\"."
	msgDisambigVolumeReask      = "Necesito saber el tomo: un número, \"el último\" o \"desde el principio\"."

	// Price comparison.
	msgPriceCompareClarify = "¿De qué productos querés comparar precios? Decime la serie o franquicia y te busco opciones."

	// Scope.
	msgScopeHostile = "Entiendo el enojo y quiero ayudarte. Contame qué pasó con tu compra y lo resolvemos, " +
		"o si preferís te derivo con una persona del equipo."
	msgScopeOutOfScope = "Eso se me escapa: soy el asistente de La Comiquería y te puedo ayudar con productos, " +
		"pedidos, envíos y pagos. ¿Te ayudo con algo de eso?"
	msgSmalltalkGreeting     = "¡Hola! Soy el asistente de La Comiquería. ¿Buscás algún manga o cómic, o te ayudo con un pedido?"
	msgSmalltalkThanks       = "¡De nada! Cualquier cosa me volvés a escribir."
	msgSmalltalkFarewell     = "¡Hasta luego! Que disfrutes la lectura."
	msgSmalltalkConfirmation = "¡Genial! Si necesitás algo más, acá estoy."

	// External failures.
	msgSessionExpired     = "Tu sesión expiró. Volvé a iniciar sesión en la tienda y escribime de nuevo."
	msgForbidden          = "No tenés permisos para ver esa información."
	msgNotFound           = "No encontré lo que buscás. Probá con otro nombre o número."
	msgCatalogUnavailable = "El catálogo está teniendo problemas en este momento. Probá de nuevo en unos minutos."
	msgBackendError       = "Estamos con problemas técnicos. Probá de nuevo en unos minutos o escribinos más tarde."
	msgStillProcessing    = "Estamos procesando tu mensaje anterior, dame un segundo."
)
