package api

import (
	"apartment_parking/internal/api/handler"
	"apartment_parking/internal/api/middleware"
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"apartment_parking/internal/service"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Services struct {
	Auth          *service.AuthService
	Parking       *service.ParkingService
	Visitors      *service.VisitorService
	Requests      *service.RequestService
	Notifications *service.NotificationService
	LPR           *service.LPRService
}

type RouterOptions struct {
	QueryTimeout time.Duration
	// LoginLimiter is nil when login rate limiting is disabled.
	LoginLimiter middleware.RateLimiter
}

func SetupRouter(svc Services, store repository.Store, wsHandler *handler.WebSocketHandler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	authMw := middleware.NewAuthMiddleware(svc.Auth)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Apartment Parking Management System API"})
	})
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
	})

	// Outside the query timeout: the connection outlives the upgrade request.
	r.GET("/ws", authMw.Authenticate(), wsHandler.HandleWebSocket)

	api := r.Group("/", middleware.QueryTimeout(opts.QueryTimeout))

	authHandler := handler.NewAuthHandler(svc.Auth)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		login := []gin.HandlerFunc{authHandler.Login}
		if opts.LoginLimiter != nil {
			login = append([]gin.HandlerFunc{middleware.RateLimitByIP(opts.LoginLimiter)}, login...)
		}
		authRoutes.POST("/login", login...)
	}

	adminH := handler.NewAdminHandler(svc.Auth, svc.Parking, svc.Visitors, svc.Requests, svc.LPR)
	admin := api.Group("/admin", authMw.Authenticate(), authMw.AuthorizeRole(domain.RoleAdmin))
	{
		admin.GET("/users", adminH.ListUsers)
		admin.GET("/residents", adminH.ListResidents)
		admin.POST("/residents", adminH.CreateResident)
		admin.DELETE("/residents/:id", adminH.DeleteResident)
		admin.PUT("/residents/:id/assign-slot", adminH.AssignSlot)

		admin.GET("/slots", adminH.ListSlots)
		admin.POST("/slots", adminH.CreateSlot)
		admin.PUT("/slots/:id", adminH.UpdateSlot)
		admin.DELETE("/slots/:id", adminH.DeleteSlot)
		admin.PUT("/slots/:id/mark-damaged", adminH.MarkSlotDamaged)
		admin.PUT("/slots/:id/mark-repaired", adminH.MarkSlotRepaired)

		admin.GET("/visitors", adminH.ListVisitors)
		admin.GET("/visitors/pending", adminH.ListPendingVisitors)
		admin.POST("/visitors/unplanned", adminH.RegisterUnplannedVisitor)
		admin.POST("/visitors/unplanned/scan", adminH.ScanUnplannedVisitor)
		admin.PUT("/visitors/:id/approve", adminH.ApproveVisitor)
		admin.PUT("/visitors/:id/reject", adminH.RejectVisitor)
		admin.PUT("/visitors/:id/mark-exit", adminH.MarkVisitorExit)

		admin.GET("/requests", adminH.ListRequests)
		admin.GET("/requests/pending", adminH.ListPendingRequests)
		admin.GET("/requests/damage-reports", adminH.ListDamageReports)
		admin.PUT("/requests/:id/approve", adminH.ResolveRequest(domain.RequestApproved))
		admin.PUT("/requests/:id/reject", adminH.ResolveRequest(domain.RequestRejected))
		admin.PUT("/requests/:id/complete", adminH.ResolveRequest(domain.RequestCompleted))

		admin.GET("/summary", adminH.Summary)
	}

	residentH := handler.NewResidentHandler(svc.Auth, svc.Parking, svc.Visitors, svc.Requests, svc.Notifications)
	resident := api.Group("/resident", authMw.Authenticate(), authMw.AuthorizeRole(domain.RoleResident))
	{
		resident.GET("/profile", residentH.GetProfile)
		resident.PUT("/profile", residentH.UpdateProfile)
		resident.PUT("/change-password", residentH.ChangePassword)
		resident.GET("/slot", residentH.GetAssignedSlot)
		resident.GET("/dashboard", residentH.Dashboard)

		resident.POST("/requests/slot-change", residentH.CreateSlotChangeRequest)
		resident.POST("/requests/damage-report", residentH.CreateDamageReport)
		resident.GET("/requests", residentH.ListRequests)
		resident.GET("/requests/:id", residentH.GetRequest)

		resident.POST("/visitors", residentH.BookVisitor)
		resident.GET("/visitors", residentH.ListVisitors())
		resident.GET("/visitors/active", residentH.ListVisitors(domain.VisitorApproved))
		resident.GET("/visitors/pending-approval", residentH.ListVisitors(domain.VisitorPending))
		resident.DELETE("/visitors/:id", residentH.CancelVisitor)
		resident.PUT("/visitors/:id/approve", residentH.ApproveVisitor)
		resident.PUT("/visitors/:id/reject", residentH.RejectVisitor)

		resident.GET("/notifications", residentH.ListNotifications)
		resident.GET("/notifications/unread-count", residentH.UnreadNotificationCount)
		resident.PUT("/notifications/read-all", residentH.MarkAllNotificationsRead)
		resident.PUT("/notifications/:id/read", residentH.MarkNotificationRead)
	}

	return r
}
