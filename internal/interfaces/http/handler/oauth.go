package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
)

// OAuthHandler runs the seller authorization flow
type OAuthHandler struct {
	BaseHandler
	tokens *allegro.TokenManager
	states *allegro.StateSigner
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(tokens *allegro.TokenManager, states *allegro.StateSigner) *OAuthHandler {
	return &OAuthHandler{tokens: tokens, states: states}
}

// Authorize godoc
// @ID           authorizeSeller
// @Summary      Start seller authorization
// @Description  Returns the marketplace consent URL. The state parameter is signed and binds the callback to the seller.
// @Tags         oauth
// @Produce      json
// @Param        X-User-ID header string true "Seller to authorize"
// @Success      200 {object} APIResponse[AuthorizeResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /oauth/authorize [get]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	state, err := h.states.Issue(userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AuthorizeResponse{URL: h.tokens.AuthCodeURL(state), State: state})
}

// Callback godoc
// @ID           oauthCallback
// @Summary      Complete seller authorization
// @Description  Exchanges the authorization code and stores the seller's token
// @Tags         oauth
// @Produce      json
// @Param        code query string true "Authorization code"
// @Param        state query string true "State returned by the authorize step"
// @Success      200 {object} APIResponse[CallbackResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /oauth/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		h.BadRequest(c, "Authorization was declined: "+e)
		return
	}
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		h.BadRequest(c, "code and state are required")
		return
	}
	userID, err := h.states.Verify(state)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	tok, err := h.tokens.Authorize(c.Request.Context(), userID, code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CallbackResponse{
		UserID:    userID,
		UserName:  tok.UserName,
		Scopes:    tok.Scopes,
		ExpiresAt: tok.Expiry,
	})
}

// Revoke godoc
// @ID           revokeSellerToken
// @Summary      Forget the seller's token
// @Tags         oauth
// @Produce      json
// @Param        X-User-ID header string true "Seller"
// @Success      200 {object} APIResponse[object]
// @Failure      400 {object} ErrorResponse
// @Router       /oauth/token [delete]
func (h *OAuthHandler) Revoke(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"user_id": userID, "revoked": true})
}
