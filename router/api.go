package router

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/handlers"
	"github.com/joeljohnson18227/eventflow/internal/config"
	"github.com/joeljohnson18227/eventflow/services"
)

// NewGinRouter builds the single route table. Every route is registered
// here exactly once; the guard and the policy middleware are the only two
// places authorization decisions happen.
func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize authorization core
	resolver := authz.NewResolver(pg)
	engine := authz.NewEngine(resolver)
	mw := authz.NewMiddleware(engine)

	// Initialize services
	authService := services.NewAuthService(pg, config.App.JWTSecret, config.App.SessionCookie, config.App.SessionTTL)
	eventService := services.NewEventService(pg, engine)
	teamService := services.NewTeamService(pg, engine, resolver)
	submissionService := services.NewSubmissionService(pg, engine, resolver)
	evaluationService := services.NewEvaluationService(pg, engine, resolver)
	announcementService := services.NewAnnouncementService(pg, engine)
	userService := services.NewUserService(pg, engine)
	certificateService := services.NewCertificateService(pg, engine)
	dashboardService := services.NewDashboardService(pg)

	var limiter *services.RateLimiter
	if config.App.RateLimit.Enabled {
		limiter = services.NewRateLimiter(rdb, config.App.RateLimit.Limit, config.App.RateLimit.Window)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	eventHandler := handlers.NewEventHandler(eventService, announcementService, submissionService, teamService)
	teamHandler := handlers.NewTeamHandler(teamService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, evaluationService)
	announcementHandler := handlers.NewAnnouncementHandler(announcementService)
	userHandler := handlers.NewUserHandler(userService, certificateService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// The guard classifies every request: public allowlist, session
	// requirement, role dashboard prefixes.
	guard := authz.NewGuard(authService)
	r.Use(guard.Handle())

	// PUBLIC ENDPOINTS

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "eventflow", "status": "ok"})
	})
	r.GET("/verify", authHandler.Verify)
	r.GET("/profile/:id", userHandler.Profile)

	// The frontend owns these pages; the backend answers so the guard's
	// authenticated-user redirect has somewhere to land from.
	for _, page := range []string{"/login", "/register"} {
		r.GET(page, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"page": page[1:]})
		})
	}

	authRoutes := r.Group("/api/auth")
	{
		if limiter != nil {
			authRoutes.POST("/register", limiter.Middleware("register"), authHandler.Register)
			authRoutes.POST("/login", limiter.Middleware("login"), authHandler.Login)
		} else {
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/me", authHandler.Me)
	}

	// Public event browsing, anonymous included
	r.GET("/events", eventHandler.ListEvents)
	r.GET("/events/:id", eventHandler.GetEvent)
	r.GET("/events/:id/announcements", eventHandler.ListEventAnnouncements)

	// PROTECTED API

	api := r.Group("/api")
	{
		// EVENT MANAGEMENT
		eventRoutes := api.Group("/events")
		{
			eventRoutes.GET("", eventHandler.ListEvents)
			eventRoutes.POST("", mw.RequirePermission(authz.ActionCreate, authz.KindEvent, ""), eventHandler.CreateEvent)
			eventRoutes.GET("/:id", eventHandler.GetEvent)
			eventRoutes.PUT("/:id", mw.RequirePermission(authz.ActionUpdate, authz.KindEvent, "id"), eventHandler.UpdateEvent)
			eventRoutes.DELETE("/:id", mw.RequirePermission(authz.ActionDelete, authz.KindEvent, "id"), eventHandler.DeleteEvent)

			// Judge assignment, event-owner scoped
			eventRoutes.GET("/:id/judges", eventHandler.ListJudges)
			eventRoutes.POST("/:id/judges", mw.RequirePermission(authz.ActionAssignJudge, authz.KindEvent, "id"), eventHandler.AssignJudge)
			eventRoutes.DELETE("/:id/judges/:judge_id", mw.RequirePermission(authz.ActionRemoveJudge, authz.KindEvent, "id"), eventHandler.RemoveJudge)

			eventRoutes.GET("/:id/teams", eventHandler.ListEventTeams)
			eventRoutes.GET("/:id/submissions", eventHandler.ListEventSubmissions)
			eventRoutes.POST("/:id/certificates", mw.RequirePermission(authz.ActionGenerate, authz.KindCertificate, "id"), userHandler.GenerateCertificate)
		}

		// TEAM MANAGEMENT
		teamRoutes := api.Group("/teams")
		{
			teamRoutes.POST("", mw.RequirePermission(authz.ActionCreate, authz.KindTeam, ""), teamHandler.CreateTeam)
			teamRoutes.POST("/join", mw.RequirePermission(authz.ActionJoin, authz.KindTeam, ""), teamHandler.JoinTeam)
			teamRoutes.GET("/:id", teamHandler.GetTeam)
			teamRoutes.PUT("/:id", mw.RequirePermission(authz.ActionUpdate, authz.KindTeam, "id"), teamHandler.UpdateTeam)
			teamRoutes.DELETE("/:id", mw.RequirePermission(authz.ActionDisband, authz.KindTeam, "id"), teamHandler.DisbandTeam)
			teamRoutes.POST("/:id/leave", mw.RequirePermission(authz.ActionLeave, authz.KindTeam, ""), teamHandler.LeaveTeam)
			teamRoutes.POST("/:id/mentor", mw.RequirePermission(authz.ActionAssignMentor, authz.KindTeam, "id"), teamHandler.AssignMentor)
		}

		// SUBMISSIONS AND EVALUATIONS
		submissionRoutes := api.Group("/submissions")
		{
			// Creation has no submission id yet; membership is checked in the
			// service against the target team.
			submissionRoutes.POST("", mw.RequireRole(authz.RoleParticipant, authz.RoleAdmin), submissionHandler.CreateSubmission)
			submissionRoutes.GET("/:id", submissionHandler.GetSubmission)
			submissionRoutes.PUT("/:id", mw.RequirePermission(authz.ActionUpdate, authz.KindSubmission, "id"), submissionHandler.UpdateSubmission)
			submissionRoutes.POST("/:id/evaluations", mw.RequirePermission(authz.ActionEvaluate, authz.KindSubmission, ""), submissionHandler.Evaluate)
			submissionRoutes.GET("/:id/evaluations", submissionHandler.ListEvaluations)
		}

		// ANNOUNCEMENTS
		announcementRoutes := api.Group("/announcements")
		{
			announcementRoutes.POST("", mw.RequirePermission(authz.ActionCreate, authz.KindAnnouncement, ""), announcementHandler.CreateAnnouncement)
			announcementRoutes.DELETE("/:id", mw.RequirePermission(authz.ActionDelete, authz.KindAnnouncement, ""), announcementHandler.DeleteAnnouncement)
		}

		// USER MANAGEMENT (admin)
		userRoutes := api.Group("/users")
		userRoutes.Use(mw.RequireRole(authz.RoleAdmin))
		{
			userRoutes.GET("", userHandler.ListUsers)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		// CERTIFICATES (own)
		api.GET("/certificates", userHandler.ListMyCertificates)
	}

	// ROLE DASHBOARDS - the guard has already enforced the prefix/role match
	for _, role := range authz.AllRoles {
		r.GET(role.HomePath(), dashboardHandler.Home)
	}

	return r
}
