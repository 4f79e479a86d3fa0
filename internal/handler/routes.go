package handler

import "github.com/gin-gonic/gin"

// Handlers groups everything mounted under the API prefix.
type Handlers struct {
	Drive       *DriveHandler
	Folders     *FolderHandler
	Files       *FileHandler
	Bulk        *BulkHandler
	CopyRequest *CopyRequestHandler
	Activity    *ActivityHandler
}

// RegisterRoutes mounts the drive API. auth guards every route except the
// signed-link download, which is authorised by its token.
func RegisterRoutes(api gin.IRouter, h Handlers, auth gin.HandlerFunc) {
	api.GET("/links/:token", h.Files.LinkDownload)

	secured := api.Group("")
	secured.Use(auth)

	secured.GET("/drive", h.Drive.Summary)
	secured.GET("/drive/trash", h.Drive.Trash)
	secured.DELETE("/drive/trash", h.Drive.EmptyTrash)

	folders := secured.Group("/folders")
	folders.GET("", h.Folders.List)
	folders.POST("", h.Folders.Create)
	folders.GET("/:id", h.Folders.Get)
	folders.PATCH("/:id", h.Folders.Update)
	folders.POST("/:id/move", h.Folders.Move)
	folders.DELETE("/:id", h.Folders.Delete)
	folders.POST("/:id/restore", h.Folders.Restore)
	folders.DELETE("/:id/permanent", h.Folders.Purge)

	files := secured.Group("/files")
	files.POST("", h.Files.Upload)
	files.GET("", h.Files.List)
	files.GET("/:id", h.Files.Get)
	files.PATCH("/:id", h.Files.Update)
	files.POST("/:id/move", h.Files.Move)
	files.DELETE("/:id", h.Files.Delete)
	files.POST("/:id/restore", h.Files.Restore)
	files.DELETE("/:id/permanent", h.Files.Purge)
	files.GET("/:id/download", h.Files.Download)
	files.GET("/:id/link", h.Files.Link)
	files.GET("/:id/preview", h.Files.Preview)

	secured.POST("/bulk", h.Bulk.Execute)

	requests := secured.Group("/copy-requests")
	requests.POST("", h.CopyRequest.Create)
	requests.GET("", h.CopyRequest.List)
	requests.GET("/:id", h.CopyRequest.Get)
	requests.PUT("/:id", h.CopyRequest.Process)
	requests.DELETE("/:id", h.CopyRequest.Cancel)

	secured.GET("/activities", h.Activity.List)
	secured.GET("/activities/export", h.Activity.Export)
}
