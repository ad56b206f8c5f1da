package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/middleware"
	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

const (
	detailProjectNotFound = "Project not found"
	detailSceneNotFound   = "Scene not found"
)

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// validationItem mirrors one entry of a 422 detail list
type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func abortValidation(c *gin.Context, err error) {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []validationItem{
			{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"},
		}})
		return
	}

	items := make([]validationItem, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		items = append(items, validationItem{
			Loc:  []string{"body", f.Field},
			Msg:  f.Reason,
			Type: "value_error",
		})
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": items})
}

// bindJSON decodes and validates a request body, aborting on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortValidation(c, errors.New("invalid JSON body"))
		return false
	}
	if err := models.Validate(dst); err != nil {
		abortValidation(c, err)
		return false
	}
	return true
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the scene generation API"})
}

// Health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) login(c *gin.Context) {
	req := models.LoginRequest{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}
	if err := models.Validate(req); err != nil {
		abortValidation(c, err)
		return
	}

	s.mu.Lock()
	acct, ok := s.st.accounts[req.Username]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		c.Header("WWW-Authenticate", "Bearer")
		abortDetail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := middleware.GenerateToken(s.cfg.JWTSecret, acct.user.ID, acct.user.Username, s.cfg.TokenTTL)
	if err != nil {
		s.logger.ErrorWithErr("Failed to sign token", err)
		abortDetail(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.ErrorWithErr("Failed to hash password", err)
		abortDetail(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.accounts[req.Username]; exists {
		abortDetail(c, http.StatusBadRequest, "Username already registered")
		return
	}
	if s.st.emailTaken(req.Email) {
		abortDetail(c, http.StatusBadRequest, "Email already registered")
		return
	}

	acct := &account{
		user: models.User{
			ID:       uuid.New().String(),
			Username: req.Username,
			Email:    req.Email,
		},
		passwordHash: hash,
	}
	s.st.accounts[req.Username] = acct

	c.JSON(http.StatusOK, acct.user)
}

// ownedProject resolves the :id param for the caller, aborting with 404
// when it is not theirs. Callers hold s.mu.
func (s *Server) ownedProject(c *gin.Context) (*models.Project, bool) {
	id := c.Param("id")
	if !validID(id) {
		abortDetail(c, http.StatusBadRequest, "Invalid ID format")
		return nil, false
	}
	userID, _ := middleware.GetUserID(c)
	p, ok := s.st.ownedProject(userID, id)
	if !ok {
		abortDetail(c, http.StatusNotFound, detailProjectNotFound)
		return nil, false
	}
	return p, true
}

// ownedScene resolves :id and :sceneId. Callers hold s.mu.
func (s *Server) ownedScene(c *gin.Context) (*sceneRecord, bool) {
	p, ok := s.ownedProject(c)
	if !ok {
		return nil, false
	}
	id := c.Param("sceneId")
	if !validID(id) {
		abortDetail(c, http.StatusBadRequest, "Invalid ID format")
		return nil, false
	}
	r, ok := s.st.scenes[id]
	if !ok || r.scene.ProjectID != p.ID {
		abortDetail(c, http.StatusNotFound, detailSceneNotFound)
		return nil, false
	}
	return r, true
}

func (s *Server) listProjects(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	s.mu.Lock()
	projects := s.st.projectsOf(userID)
	s.mu.Unlock()

	c.JSON(http.StatusOK, projects)
}

func (s *Server) createProject(c *gin.Context) {
	var req models.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, _ := middleware.GetUserID(c)

	s.mu.Lock()
	p := *s.st.addProject(userID, req.Title, s.now())
	s.mu.Unlock()

	c.JSON(http.StatusOK, p)
}

func (s *Server) getProject(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProject(c)
	if !ok {
		return
	}

	resp := models.ProjectWithScenes{Project: *p, Scenes: make([]models.Scene, 0)}
	for _, r := range s.st.scenesOf(p.ID) {
		resp.Scenes = append(resp.Scenes, r.scene)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) updateProject(c *gin.Context) {
	var req models.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProject(c)
	if !ok {
		return
	}
	p.Title = req.Title
	c.JSON(http.StatusOK, *p)
}

func (s *Server) deleteProject(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProject(c)
	if !ok {
		return
	}
	s.st.deleteProject(p.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) listScenes(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProject(c)
	if !ok {
		return
	}

	scenes := make([]models.Scene, 0)
	for _, r := range s.st.scenesOf(p.ID) {
		scenes = append(scenes, r.scene)
	}
	c.JSON(http.StatusOK, scenes)
}

func (s *Server) createScene(c *gin.Context) {
	var req models.SceneRequest
	if !bindJSON(c, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProject(c)
	if !ok {
		return
	}
	r := s.st.addScene(p.ID, req.Prompt, req.Order, s.now())
	c.JSON(http.StatusOK, r.scene)
}

func (s *Server) getScene(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ownedScene(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.detail())
}

func (s *Server) updateScene(c *gin.Context) {
	var update models.SceneUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortValidation(c, errors.New("invalid JSON body"))
		return
	}
	if err := validateSceneUpdate(update); err != nil {
		abortValidation(c, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ownedScene(c)
	if !ok {
		return
	}
	r.applyUpdate(update)
	c.JSON(http.StatusOK, r.scene)
}

func validateSceneUpdate(u models.SceneUpdate) error {
	verr := &models.ValidationError{}
	if u.Prompt != nil && strings.TrimSpace(*u.Prompt) == "" {
		verr.Fields = append(verr.Fields, models.FieldError{Field: "prompt", Reason: "is required"})
	}
	if u.Order != nil && *u.Order < 0 {
		verr.Fields = append(verr.Fields, models.FieldError{Field: "order", Reason: "must be at least 0"})
	}
	if u.Status != nil && !u.Status.Valid() {
		verr.Fields = append(verr.Fields, models.FieldError{Field: "status", Reason: "is invalid"})
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *Server) deleteScene(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ownedScene(c)
	if !ok {
		return
	}
	delete(s.st.scenes, r.scene.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) refinePrompt(c *gin.Context) {
	var req models.RefinePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, errors.New("invalid JSON body"))
		return
	}
	c.JSON(http.StatusOK, models.RefinePromptResponse{
		RefinedPrompt: RefinePrompt(req.ProjectTitle, req.Prompt),
	})
}

func (s *Server) generateCode(c *gin.Context) {
	var req models.GenerateCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, models.GenerateCodeResponse{Code: GenerateCode(req.Prompt)})
}

// fakeMP4 is a minimal ftyp box, enough for clients that sniff the type
var fakeMP4 = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

func (s *Server) serveVideo(c *gin.Context) {
	sceneID := strings.TrimSuffix(c.Param("file"), ".mp4")

	s.mu.Lock()
	r, ok := s.st.scenes[sceneID]
	completed := ok && r.scene.Status == models.SceneStatusCompleted
	s.mu.Unlock()

	if !completed {
		abortDetail(c, http.StatusNotFound, "Video not found")
		return
	}
	c.Data(http.StatusOK, "video/mp4", fakeMP4)
}
