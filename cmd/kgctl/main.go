package main

import (
	"fmt"
	"os"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/pkg/database"
	"knowledge_graph_backend/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kgctl",
		Short:         "Knowledge graph administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs", "directory containing config.yaml")

	root.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newValidateGraphCommand(),
		newRecalculateCommand(),
	)
	return root
}

// environment 子命令共用的配置与数据库连接
type environment struct {
	cfg *config.Config
	db  *gorm.DB
}

func openEnvironment(migrate bool) (*environment, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &environment{cfg: cfg, db: db}, nil
}

func (e *environment) graphService() *service.KnowledgeGraphService {
	return service.NewKnowledgeGraphService(
		repository.NewConceptRepository(e.db),
		repository.NewRelationshipRepository(e.db),
		repository.NewCourseConceptRepository(e.db),
		repository.NewCourseRepository(e.db),
		repository.NewMasteryRepository(e.db),
	)
}

func (e *environment) masteryService() (*service.UserMasteryService, error) {
	svc := service.NewUserMasteryService(repository.NewMasteryRepository(e.db), repository.NewCourseConceptRepository(e.db))
	if _, err := svc.SetConfig(e.cfg.Mastery.Override()); err != nil {
		return nil, err
	}
	return svc, nil
}

func (e *environment) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
