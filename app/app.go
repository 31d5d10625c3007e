package app

import (
	"goimomi/activity"
	"goimomi/config"
	"goimomi/filemgr"
	"goimomi/middleware"
	"goimomi/rdx"

	"gorm.io/gorm"
)

// App is built once in main and handed to every handler group.
type App struct {
	Cfg      config.Config
	DB       *gorm.DB
	Files    *filemgr.Store
	Cache    *rdx.Cache
	Activity *activity.Recorder
	Auth     *middleware.Auth
}
