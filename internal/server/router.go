package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gadgetswap/backend/internal/auth"
	"github.com/gadgetswap/backend/internal/marketplace"
	"github.com/gadgetswap/backend/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const identityContextKey = "gadgetswap_identity"

var (
	errMissingMarketplaceService = errors.New("marketplace service dependency required")
	errMissingTokenIssuer        = errors.New("token issuer dependency required")
)

// Dependencies wires the HTTP layer to the rest of the application.
type Dependencies struct {
	Marketplace *marketplace.Service
	TokenIssuer *auth.TokenIssuer
	Dispatcher  *RealtimeDispatcher
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger

	CookieName        string
	CookieSecure      bool
	AllowedOrigins    []string
	RequestsPerSecond float64
	RequestBurst      int
}

// NewHTTPHandler assembles the API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Marketplace == nil {
		return nil, errMissingMarketplaceService
	}
	if deps.TokenIssuer == nil {
		return nil, errMissingTokenIssuer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}
	cookieName := strings.TrimSpace(deps.CookieName)
	if cookieName == "" {
		cookieName = "token"
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	requestsPerSecond := deps.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = 20
	}
	burst := deps.RequestBurst
	if burst <= 0 {
		burst = 40
	}

	validator, err := auth.NewSessionValidator(deps.TokenIssuer, cookieName)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if deps.Metrics != nil {
		router.Use(func(c *gin.Context) {
			c.Next()
			deps.Metrics.RecordHTTPStatus(c.Writer.Status())
		})
	}
	router.Use(newClientRateLimiter(requestsPerSecond, burst).middleware())

	handler := &httpHandler{
		service:      deps.Marketplace,
		tokens:       deps.TokenIssuer,
		validator:    validator,
		dispatcher:   dispatcher,
		logger:       logger,
		cookieName:   cookieName,
		cookieSecure: deps.CookieSecure,
	}

	router.GET("/", handler.handleHealth)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	users := router.Group("/users")
	users.POST("/add_new_user", handler.handleAddNewUser)
	users.GET("/find_availability_by_email", handler.handleFindAvailabilityByEmail)
	users.POST("/generate_jwt_and_get_token", handler.handleGenerateToken)
	users.POST("/logout_and_clear_jwt", handler.handleLogout)
	users.POST("/record_failed_login_attempt", handler.handleRecordFailedLogin)

	usersAuthed := users.Group("")
	usersAuthed.Use(handler.authorizeRequest)
	usersAuthed.GET("/get_user_by_email", handler.handleGetUserByEmail)
	usersAuthed.GET("/get_full_user_profile_details", handler.handleGetFullUserProfile)
	usersAuthed.PATCH("/add_or_remove_a_gadget_id_to_or_from_wishlist", handler.handleToggleWishlist)

	gadgets := router.Group("/gadgets")
	gadgets.GET("/featured_gadgets_for_home_page", handler.handleFeaturedGadgets)
	gadgets.GET("/get_all_gadgets_for_gadgets_page", handler.handleAllGadgets)
	gadgets.GET("/get_gadget_details_by_id/:id", handler.handleGadgetByID)

	gadgetsAuthed := gadgets.Group("")
	gadgetsAuthed.Use(handler.authorizeRequest)
	gadgetsAuthed.GET("/get_gadget_details_of_a_wishlist_array", handler.handleWishlistGadgetDetails)

	rentals := router.Group("/rentals")
	rentals.Use(handler.authorizeRequest)
	rentals.POST("/book_a_rental_order", handler.handleBookRental)

	messages := router.Group("/messages")
	messages.Use(handler.authorizeRequest)
	messages.GET("/get_message_chain", handler.handleGetMessageChain)
	messages.POST("/send_a_message", handler.handleSendMessage)
	messages.GET("/stream", handler.handleMessageStream)

	return router, nil
}

type httpHandler struct {
	service      *marketplace.Service
	tokens       *auth.TokenIssuer
	validator    *auth.SessionValidator
	dispatcher   *RealtimeDispatcher
	logger       *zap.Logger
	cookieName   string
	cookieSecure bool
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	identity, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Warn("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

func (h *httpHandler) callerIdentity(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

type tokenRequestPayload struct {
	Email string `json:"email"`
}

type tokenResponsePayload struct {
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expires_in"`
	User      marketplace.User `json:"user"`
}

func (h *httpHandler) handleGenerateToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.service.GetUserForLogin(c.Request.Context(), strings.TrimSpace(request.Email))
	if err != nil {
		h.writeServiceError(c, "login", err)
		return
	}

	identity := auth.Identity{Email: user.Email, Role: marketplace.ParseRole(user.Role)}
	token, expiresIn, err := h.tokens.IssueToken(identity)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	h.setSessionCookie(c, token, int(expiresIn))
	c.JSON(http.StatusOK, tokenResponsePayload{Token: token, ExpiresIn: expiresIn, User: user})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, maxAge, "/", "", h.cookieSecure, true)
}

func (h *httpHandler) handleAddNewUser(c *gin.Context) {
	var newUser marketplace.User
	if err := c.ShouldBindJSON(&newUser); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID, err := h.service.OnboardUser(c.Request.Context(), newUser)
	if err != nil {
		h.writeServiceError(c, "onboarding", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": userID})
}

func (h *httpHandler) handleFindAvailabilityByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	registered, err := h.service.EmailRegistered(c.Request.Context(), email)
	if err != nil {
		h.writeServiceError(c, "availability", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registered": registered, "available": !registered})
}

type failedLoginRequestPayload struct {
	Email string `json:"email"`
}

func (h *httpHandler) handleRecordFailedLogin(c *gin.Context) {
	var request failedLoginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.service.RecordFailedLogin(c.Request.Context(), strings.TrimSpace(request.Email)); err != nil {
		h.writeServiceError(c, "failed_login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *httpHandler) handleGetUserByEmail(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.service.GetUserByEmail(c.Request.Context(), identity.Email)
	if err != nil {
		h.writeServiceError(c, "get_user", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleGetFullUserProfile(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.service.GetFullUserProfile(c.Request.Context(), identity.Email)
	if err != nil {
		h.writeServiceError(c, "full_profile", err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

type wishlistRequestPayload struct {
	GadgetID string `json:"gadget_id"`
}

func (h *httpHandler) handleToggleWishlist(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request wishlistRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.GadgetID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	update, err := h.service.ToggleWishlist(c.Request.Context(), identity.Email, strings.TrimSpace(request.GadgetID))
	if err != nil {
		h.writeServiceError(c, "wishlist", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"wishlist": update.Wishlist, "added": update.Added})
}

func (h *httpHandler) handleFeaturedGadgets(c *gin.Context) {
	summaries, err := h.service.FeaturedGadgets(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "featured_gadgets", err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleAllGadgets(c *gin.Context) {
	summaries, err := h.service.AllGadgets(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "all_gadgets", err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleGadgetByID(c *gin.Context) {
	gadget, err := h.service.GetGadgetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, "gadget_details", err)
		return
	}
	c.JSON(http.StatusOK, gadget)
}

func (h *httpHandler) handleWishlistGadgetDetails(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	gadgets, err := h.service.WishlistGadgetDetails(c.Request.Context(), identity.Email)
	if err != nil {
		h.writeServiceError(c, "wishlist_details", err)
		return
	}

	c.JSON(http.StatusOK, gadgets)
}

func (h *httpHandler) handleBookRental(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var order marketplace.RentalOrder
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.service.BookRental(c.Request.Context(), identity.Email, order)
	if err != nil {
		h.writeServiceError(c, "rental_booking", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order_id": result.OrderID, "order": result.Order})
}

func (h *httpHandler) handleGetMessageChain(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chain, err := h.service.GetMessageChain(c.Request.Context(), identity.Email)
	if err != nil {
		h.writeServiceError(c, "message_chain", err)
		return
	}

	c.JSON(http.StatusOK, chain)
}

type sendMessageRequestPayload struct {
	Content string `json:"content"`
	// UserEmail lets an admin write into another user's chain. Regular
	// callers always write to their own.
	UserEmail string `json:"user_email,omitempty"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request sendMessageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	targetEmail := identity.Email
	if identity.Role == marketplace.RoleAdmin && strings.TrimSpace(request.UserEmail) != "" {
		targetEmail = strings.TrimSpace(request.UserEmail)
	}

	chain, err := h.service.AppendMessage(c.Request.Context(), targetEmail, identity.Role, request.Content)
	if err != nil {
		h.writeServiceError(c, "send_message", err)
		return
	}

	unread := chain.UnreadByUserCount
	if identity.Role == marketplace.RoleUser {
		unread = chain.UnreadByAdminCount
	}
	h.dispatcher.Publish(RealtimeMessage{
		UserEmail:   chain.UserEmail,
		EventType:   RealtimeEventMessageReceived,
		Sender:      string(identity.Role),
		TotalCount:  int64(chain.TotalCount),
		UnreadCount: int64(unread),
		Timestamp:   time.Now().UTC(),
	})

	c.JSON(http.StatusOK, chain)
}

func (h *httpHandler) handleMessageStream(c *gin.Context) {
	identity, ok := h.callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context(), identity.Email)
	defer cleanup()

	heartbeat := time.NewTicker(realtimeHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case message, open := <-stream:
			if !open {
				return
			}
			c.SSEvent(message.EventType, message)
			flusher.Flush()
		}
	}
}

// writeServiceError maps domain errors onto HTTP statuses. A compensation
// failure is a 500 like any other internal error, but it is logged at error
// level with the failed step so the stranded documents can be repaired.
func (h *httpHandler) writeServiceError(c *gin.Context, operation string, err error) {
	var compErr *marketplace.CompensationError
	if errors.As(err, &compErr) {
		h.logger.Error("saga compensation failed, manual repair required",
			zap.String("operation", operation),
			zap.String("saga", compErr.Saga),
			zap.String("step", compErr.Step),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	switch {
	case errors.Is(err, marketplace.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case errors.Is(err, marketplace.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, marketplace.ErrLoginRestricted):
		c.JSON(http.StatusLocked, gin.H{"error": "login_restricted"})
	case errors.Is(err, marketplace.ErrUserNotFound),
		errors.Is(err, marketplace.ErrGadgetNotFound),
		errors.Is(err, marketplace.ErrChainNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
