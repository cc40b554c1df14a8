package internal

import (
	"chatstat/internal/controllers"
	"chatstat/internal/providers"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/updates", http.HandlerFunc(apiController.UpdateUsers))
	routers.Get("/activity", http.HandlerFunc(apiController.GetActivity))
	routers.Get("/colors", http.HandlerFunc(apiController.GetColors))
	routers.Post("/colors", http.HandlerFunc(apiController.SetColor))
	routers.Get("/cursor", http.HandlerFunc(apiController.GetCursor))
	routers.Post("/cursor", http.HandlerFunc(apiController.SetCursor))
	routers.Post("/cursor/clear", http.HandlerFunc(apiController.ClearCursors))
	return routers
}
