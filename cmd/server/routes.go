package main

import (
	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/interfaces/http/handlers"
	"keyforge.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler          *handlers.AuthHandler
	licenseCheckHandler  *handlers.LicenseCheckHandler
	licenseHandler       *handlers.LicenseHandler
	applicationHandler   *handlers.ApplicationHandler
	licenseFormatHandler *handlers.LicenseFormatHandler
	messageHandler       *handlers.MessageHandler
	userHandler          *handlers.UserHandler
	authMiddleware       gin.HandlerFunc
	checkRateLimit       gin.HandlerFunc
	idempotency          gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Public license check, called by client software
		v1.POST("/licenses/check", d.checkRateLimit, d.licenseCheckHandler.Check)

		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", d.authHandler.Login)
			auth.POST("/refresh", d.authHandler.RefreshToken)
			auth.POST("/logout", d.authHandler.Logout)
		}

		api := v1.Group("")
		api.Use(d.authMiddleware)
		{
			api.GET("/auth/me", d.authHandler.GetMe)
			api.POST("/auth/change-password", d.authHandler.ChangePassword)

			licenses := api.Group("/licenses")
			{
				licenses.GET("", d.licenseHandler.ListLicenses)
				licenses.GET("/stats", d.licenseHandler.GetStats)
				licenses.POST("/generate", d.idempotency, d.licenseHandler.GenerateLicenses)
				licenses.POST("/pause-all", d.licenseHandler.PauseAllLicenses)
				licenses.POST("/resume-all", d.licenseHandler.ResumeAllLicenses)
				licenses.GET("/:key", d.licenseHandler.GetLicense)
				licenses.DELETE("/:key", d.licenseHandler.DeleteLicense)
				licenses.POST("/:key/ban", d.licenseHandler.BanLicense)
				licenses.POST("/:key/unban", d.licenseHandler.UnbanLicense)
				licenses.POST("/:key/pause", d.licenseHandler.PauseLicense)
				licenses.POST("/:key/resume", d.licenseHandler.ResumeLicense)
				licenses.POST("/:key/extend", d.licenseHandler.ExtendLicense)
				licenses.POST("/:key/reset-hwid", d.licenseHandler.ResetHWID)
			}

			apps := api.Group("/applications")
			{
				apps.GET("", d.applicationHandler.ListApplications)
				apps.POST("", d.applicationHandler.CreateApplication)
				apps.GET("/:appId", d.applicationHandler.GetApplication)
				apps.PATCH("/:appId", d.applicationHandler.UpdateApplication)
				apps.DELETE("/:appId", d.applicationHandler.DeleteApplication)
				apps.POST("/:appId/rotate", d.applicationHandler.RotateAppID)
				apps.GET("/:appId/access", d.applicationHandler.ListAccess)
				apps.POST("/:appId/access", d.applicationHandler.GrantAccess)
				apps.DELETE("/:appId/access/:userId", d.applicationHandler.RevokeAccess)
				apps.POST("/:appId/licenses/pause", d.licenseHandler.PauseApplicationLicenses)
				apps.POST("/:appId/licenses/resume", d.licenseHandler.ResumeApplicationLicenses)
				apps.POST("/:appId/licenses/extend", d.licenseHandler.ExtendApplicationLicenses)
			}

			messages := api.Group("/messages")
			{
				messages.GET("", d.messageHandler.ListMessages)
				messages.PUT("/:code", d.messageHandler.SetMessage)
				messages.DELETE("/:code", d.messageHandler.ResetMessage)
			}

			// Admin only
			format := api.Group("/license-format", middleware.RequireAdmin())
			{
				format.GET("", d.licenseFormatHandler.GetFormat)
				format.PUT("", d.licenseFormatHandler.UpdateFormat)
				format.POST("/preview", d.licenseFormatHandler.PreviewFormat)
			}

			users := api.Group("/users", middleware.RequireAdmin())
			{
				users.GET("", d.userHandler.ListUsers)
				users.POST("", d.userHandler.CreateUser)
				users.PUT("/:id/permissions", d.userHandler.UpdatePermissions)
				users.DELETE("/:id", d.userHandler.DeleteUser)
			}
		}
	}
}
