package repository

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/burrowlabs/burrow/internal/config"
	"github.com/burrowlabs/burrow/internal/database"
	"github.com/burrowlabs/burrow/internal/service"
)

// NewVectorIndex builds the vector store selected by cfg.VectorBackend
// and returns it with a cleanup function for process shutdown.
func NewVectorIndex(ctx context.Context, cfg *config.Config) (service.VectorIndex, func(), error) {
	switch cfg.VectorBackend {
	case "memory":
		return NewMemoryVectorIndex(), func() {}, nil

	case "sqlite":
		idx, err := NewSQLiteVectorIndex(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() {
			if err := idx.Close(); err != nil {
				log.Printf("repository: failed to close sqlite index: %v", err)
			}
		}, nil

	case "pgvector":
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return NewPGVectorIndex(pool), pool.Close, nil

	case "qdrant":
		host, port, err := splitHostPort(cfg.QdrantAddr)
		if err != nil {
			return nil, nil, err
		}
		idx, err := NewQdrantVectorIndex(ctx, host, port, cfg.Collection, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() {
			if err := idx.Close(); err != nil {
				log.Printf("repository: failed to close qdrant client: %v", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
