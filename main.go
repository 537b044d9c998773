package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/envlocker/envlocker/dao"
	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal"
	"github.com/envlocker/envlocker/pkg/cleaner"
	"github.com/envlocker/envlocker/pkg/config"
	"github.com/envlocker/envlocker/pkg/crypto"
)

// @title EnvLocker API
// @version 0.2.0
// @description This is the API server for EnvLocker, a multi-tenant secrets manager with per-environment access control.
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Call /login and put 'Bearer ${TOKEN}' here to reach the protected routes
func main() {
	// set global timezone
	time.Local = time.UTC

	// variable changes in local development
	if gin.Mode() == gin.DebugMode {
		if err := godotenv.Load(".debug.env"); err != nil {
			klog.Warning("no .debug.env file: ", err)
		}
	}

	backendConfig := config.GetConfig()
	if port := os.Getenv("ENVLOCKER_PORT"); port != "" {
		backendConfig.ServerAddr = ":" + port
	}

	// The vault refuses to start on a bad key so a misconfigured deployment
	// fails before it accepts any writes.
	vault, err := crypto.NewVault(backendConfig.EncryptionKey)
	if err != nil {
		klog.Fatal("encryption key: ", err)
	}

	db := dao.GetDB()
	if err := dao.Migrate(db); err != nil {
		klog.Fatal("migrate: ", err)
	}
	s := store.New(db, vault)

	sweeper := cleaner.New(db)
	if err := sweeper.Start(backendConfig.Cleaner.Schedule); err != nil {
		klog.Fatal("cleaner: ", err)
	}
	defer sweeper.Stop()

	backend := internal.Register(s)
	klog.Info("listening on ", backendConfig.ServerAddr)
	if err := backend.R.Run(backendConfig.ServerAddr); err != nil {
		klog.Fatal(err)
	}
}
