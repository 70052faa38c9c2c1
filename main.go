package main

import (
	"context"
	"flag"
	"log"

	"ADCTF/checker"
	"ADCTF/config"
	"ADCTF/controllers"
	"ADCTF/database"
	"ADCTF/routes"
	"ADCTF/scheduler"
	"ADCTF/services"
	"ADCTF/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML 配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 持久层或缓存不可用属于致命错误：带病启动会弄脏回合账目
	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Database and Redis connections established.")

	st := storage.New(db, rdb)
	registry := checker.NewRegistry()

	pool := checker.NewPool(st, registry, cfg.Checker.Workers, cfg.Checker.Queue)
	pool.Start()
	defer pool.Stop()

	rounds := services.NewRoundService(st, pool)
	attacks := services.NewAttackService(st)

	ctx := context.Background()
	sch := scheduler.New(st)
	if err := services.RegisterGameSchedules(ctx, sch, rounds, st); err != nil {
		log.Fatalf("Failed to register game schedules: %v", err)
	}
	sch.Run(ctx)
	defer sch.Stop()

	r := routes.SetupRouter(
		controllers.NewFlagController(attacks),
		controllers.NewScoreboardController(st),
	)

	log.Printf("Starting server on %s", cfg.Listen)
	if err := r.Run(cfg.Listen); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
