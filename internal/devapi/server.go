// Package devapi is a small in-memory implementation of the DrinkShelf auth
// and profile API, used for local development and as the peer of the
// client's integration tests.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/common"
	"github.com/dmitrijs2005/drinkshelf/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	ctxUserKey = "devapi.user"

	// Datetimes are emitted zone-less, in UTC.
	timeLayout = "2006-01-02T15:04:05.999999"

	msgBadCredentials = "Incorrect username or password"
	msgInvalidToken   = "Could not validate credentials"
	msgForbidden      = "Cannot update other users' profiles"
	msgNotFound       = "User not found"
)

var tagNameOnce sync.Once

type registerRequest struct {
	Username    string  `json:"username" binding:"required,min=3,max=50"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Bio         *string `json:"bio"`
}

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type updateRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Bio         *string `json:"bio"`
}

type userResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type detailItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func toResponse(u *User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		CreatedAt:   u.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   u.UpdatedAt.UTC().Format(timeLayout),
	}
}

// Server serves the API over gin.
type Server struct {
	cfg    *Config
	users  *Users
	logger logging.Logger
	engine *gin.Engine
}

func NewServer(cfg *Config, users *Users, logger logging.Logger) *Server {
	useJSONFieldNames()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{cfg: cfg, users: users, logger: logger, engine: engine}

	engine.Use(gin.Recovery(), s.logRequests())
	engine.GET("/health", s.health)

	auth := engine.Group("/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
	}

	usersGroup := engine.Group("/users")
	{
		usersGroup.GET("/me", s.authenticate(), s.me)
		usersGroup.GET("/:id", s.getUser)
		usersGroup.PUT("/:id", s.authenticate(), s.updateUser)
	}

	return s
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "dev api listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func fail(c *gin.Context, status int, detail string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", common.BearerScheme)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// failValidation answers 422 with a list of {loc, msg, type} items.
func failValidation(c *gin.Context, err error) {
	var items []detailItem

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			items = append(items, detailItem{
				Loc:  []string{"body", fe.Field()},
				Msg:  validationMessage(fe),
				Type: fe.Tag(),
			})
		}
	} else {
		items = append(items, detailItem{Loc: []string{"body"}, Msg: "Invalid request body", Type: "parse_error"})
	}

	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": items})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "min":
		return fmt.Sprintf("String should have at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("String should have at most %s characters", fe.Param())
	case "email":
		return "value is not a valid email address"
	case "uuid":
		return "Input should be a valid UUID"
	default:
		return "Invalid value"
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	u, err := s.users.Create(c.Request.Context(), req.Username, req.Email, req.Password, req.DisplayName, req.Bio)
	switch {
	case errors.Is(err, ErrUsernameTaken):
		fail(c, http.StatusConflict, "Username already registered")
		return
	case errors.Is(err, ErrEmailTaken):
		fail(c, http.StatusConflict, "Email already registered")
		return
	case err != nil:
		s.logger.Error(c.Request.Context(), "create user", "error", err)
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info(c.Request.Context(), "user registered", "user_id", u.ID, "username", u.Username)
	c.JSON(http.StatusCreated, toResponse(u))
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		failValidation(c, err)
		return
	}

	u, err := s.users.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		fail(c, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	token, err := GenerateToken(u.ID, []byte(s.cfg.SecretKey), s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error(c.Request.Context(), "generate token", "error", err)
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         toResponse(u),
	})
}

// authenticate resolves the bearer token into the current user.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader(common.AuthorizationHeader), " ")
		if !ok || !strings.EqualFold(scheme, common.BearerScheme) || token == "" {
			fail(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		userID, err := GetUserIDFromToken(token, []byte(s.cfg.SecretKey))
		if err != nil {
			s.logger.Debug(c.Request.Context(), "token rejected", "error", err)
			fail(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		u, err := s.users.Get(c.Request.Context(), userID)
		if err != nil {
			fail(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		c.Set(ctxUserKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *User {
	u, _ := c.MustGet(ctxUserKey).(*User)
	return u
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, toResponse(currentUser(c)))
}

func pathUserID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []detailItem{{
			Loc:  []string{"path", "user_id"},
			Msg:  "Input should be a valid UUID",
			Type: "uuid_parsing",
		}}})
		return "", false
	}
	return id.String(), true
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}

	u, err := s.users.Get(c.Request.Context(), id)
	if errors.Is(err, common.ErrorNotFound) {
		fail(c, http.StatusNotFound, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, toResponse(u))
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := pathUserID(c)
	if !ok {
		return
	}

	if currentUser(c).ID != id {
		fail(c, http.StatusForbidden, msgForbidden)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	u, err := s.users.Update(c.Request.Context(), id, req.DisplayName, req.Bio)
	if errors.Is(err, common.ErrorNotFound) {
		fail(c, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info(c.Request.Context(), "profile updated", "user_id", u.ID)
	c.JSON(http.StatusOK, toResponse(u))
}
