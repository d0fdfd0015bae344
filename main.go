package main

import (
	"log"
	"time"

	"github.com/medev/blogapi/config"
	"github.com/medev/blogapi/controllers"
	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/repositories"
	"github.com/medev/blogapi/routes"
	"github.com/medev/blogapi/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() {
		if utils.Logger != nil {
			_ = utils.Logger.Sync()
		}
	}()

	db := config.InitDatabase(&models.User{}, &models.Post{})

	users := repositories.NewGormUserRepository(db)
	posts := repositories.NewGormPostRepository(db)

	resets := utils.NewPasswordResetTokens(cfg.JWTSecret, time.Duration(cfg.ResetTokenHours)*time.Hour)
	auth := controllers.NewAuthController(users, resets, utils.SendMail)
	postCtrl := controllers.NewPostController(posts, users)

	router := routes.SetupRouter(auth, postCtrl)

	utils.Sugar.Infof("listening on :%s", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, router); err != nil {
		utils.Sugar.Fatalf("server exited: %v", err)
	}
}
