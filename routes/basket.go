package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/basket-service/controllers"
)

func RegisterBasketRoutes(r *gin.Engine, controller *controllers.BasketController) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "basket-service"})
	})

	api := r.Group("/basket")
	{
		api.GET("", controller.ListBaskets)
		api.GET("/:userName", controller.GetBasket)
		api.POST("", controller.SaveBasket)
		api.DELETE("/:userName", controller.DeleteBasket)
		api.POST("/checkout", controller.CheckoutBasket)
	}
}
