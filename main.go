// @title K-Bot Teach Mode API
// @version 1.0
// @description 文档学习平台的教学模式后端服务。

// @host localhost:8080
// @BasePath /api

package main

import (
	"flag"
	"log"

	"kbot_backend/internal/app"
	"kbot_backend/internal/config"
	"kbot_backend/pkg/configwatcher"
	"kbot_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	importGraph := flag.String("import-graph", "", "启动时导入的图谱制品文件路径，导入后退出")
	importKB := flag.String("import-kb", "", "图谱制品导入的目标知识库ID")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly || *importGraph != ""
	cfg.MigrateOnly = *migrateOnly
	cfg.ImportGraph = *importGraph
	cfg.ImportKB = *importKB

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	// 导入图谱制品后直接退出
	if *importGraph != "" {
		if *importKB == "" {
			log.Fatal("使用 -import-graph 时必须同时指定 -import-kb")
		}
		if err := application.ImportGraphArtifact(*importKB, *importGraph); err != nil {
			log.Fatalf("图谱导入失败: %v", err)
		}
		log.Println("图谱导入完成，退出程序")
		return
	}

	// 配置热更新，教学策略参数不重启生效
	go configwatcher.WatchConfig("configs/config.yaml", application.ReloadConfig)

	application.Run()
}
