package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/util"
	"knowledge_graph_backend/pkg/logger"

	"go.uber.org/zap"
)

// GraphExportService 将活跃图谱导出为 JSON 快照
type GraphExportService struct {
	Graph   *KnowledgeGraphService
	Storage *StorageService
	now     func() time.Time
}

func NewGraphExportService(graph *KnowledgeGraphService, storage *StorageService) *GraphExportService {
	return &GraphExportService{Graph: graph, Storage: storage, now: time.Now}
}

func (s *GraphExportService) Snapshot(ctx context.Context) (*model.GraphSnapshot, error) {
	active := true
	concepts, err := s.Graph.GetConcepts(ctx, model.ConceptFilters{IsActive: &active})
	if err != nil {
		return nil, err
	}
	rels, err := s.Graph.RelationshipRepo.FindAllActive(ctx)
	if err != nil {
		logger.Log.Error("Failed to load relationships for export", zap.Error(err))
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	validation, err := s.Graph.ValidateGraph(ctx)
	if err != nil {
		return nil, err
	}
	return &model.GraphSnapshot{
		GeneratedAt:   s.now().UTC(),
		Concepts:      concepts,
		Relationships: rels,
		Validation:    *validation,
	}, nil
}

func (s *GraphExportService) Export(ctx context.Context) (*model.GraphExportResult, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	filename := fmt.Sprintf("%s/%s.json", util.GraphExportDir, snapshot.GeneratedAt.Format("20060102T150405Z"))
	url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(data), int64(len(data)), util.MimeJSON)
	if err != nil {
		logger.Log.Error("Failed to upload graph export", zap.String("filename", filename), zap.Error(err))
		return nil, fmt.Errorf("upload export: %w", err)
	}

	logger.Log.Info("Knowledge graph exported",
		zap.String("filename", filename),
		zap.Int("concepts", len(snapshot.Concepts)),
		zap.Int("relationships", len(snapshot.Relationships)))
	return &model.GraphExportResult{
		Filename:      filename,
		URL:           url,
		Concepts:      len(snapshot.Concepts),
		Relationships: len(snapshot.Relationships),
		GeneratedAt:   snapshot.GeneratedAt,
	}, nil
}
