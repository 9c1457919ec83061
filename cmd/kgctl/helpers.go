package main

import (
	"fmt"
	"os"

	"knowledge_graph_backend/internal/seed"
)

func loadSeedGraph(file string) (*seed.Graph, error) {
	if file == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return seed.Parse(data)
}
