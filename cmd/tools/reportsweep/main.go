package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"communityhub/internal/community"
	"communityhub/internal/config"
	"communityhub/internal/infra"
	"communityhub/internal/logger"
	"communityhub/internal/moderation"
)

// 调整举报阈值后，对所有仍有待处理举报的帖子重新执行阈值检查
func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	threshold := flag.Int("threshold", 0, "举报阈值，0 表示沿用配置")
	flag.Parse()

	cfg, err := config.Load(*env, "")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	db, err := infra.OpenDatabase(&cfg.Database, "release")
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer infra.CloseDatabase(db)

	reportThreshold := *threshold
	if reportThreshold <= 0 {
		reportThreshold = cfg.Moderation.ReportThreshold
	}
	if reportThreshold <= 0 {
		reportThreshold = moderation.DefaultReportThreshold
	}

	pipeline, err := moderation.NewPipeline(moderation.DefaultPolicy())
	if err != nil {
		log.Fatalf("初始化审核流水线失败: %v", err)
	}
	svc := community.NewService(db, pipeline, reportThreshold, logger.Get())

	ctx := context.Background()
	ids, err := svc.PostsWithPendingReports(ctx)
	if err != nil {
		log.Fatalf("查询待处理举报失败: %v", err)
	}

	flagged := 0
	for _, id := range ids {
		ok, err := svc.ApplyReportThreshold(ctx, id)
		if err != nil {
			log.Printf("跳过帖子 %s: %v", id, err)
			continue
		}
		if ok {
			flagged++
		}
	}
	fmt.Printf("已检查 %d 个帖子，%d 个进入审核队列（阈值 %d）\n", len(ids), flagged, reportThreshold)
}
