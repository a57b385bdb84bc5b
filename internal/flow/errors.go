package flow

import (
	"github.com/lacomiqueria/chatbot/internal/models"
)

// mapExternalError turns a storefront failure into the user-facing response
// for it. Session expiry asks for re-authentication; everything else resolves
// to a closed set of apologetic messages so raw statuses never leak to the
// customer.
func mapExternalError(err error, conversationID string) *models.Wf1Response {
	ese, ok := models.AsExternalServiceError(err)
	if !ok {
		return models.FailureResponse(msgBackendError)
	}
	switch ese.Status {
	case 401:
		resp := models.AuthRequiredResponse(msgSessionExpired)
		resp.ConversationID = conversationID
		return resp
	case 403:
		return models.FailureResponse(msgForbidden)
	case 404:
		return models.FailureResponse(msgNotFound)
	}
	if ese.IsCatalog() {
		return models.FailureResponse(msgCatalogUnavailable)
	}
	return models.FailureResponse(msgBackendError)
}
