package app

import (
	"context"
	"time"

	"jobharvest/internal/config"
	"jobharvest/internal/database"
	dbpostgres "jobharvest/internal/database/postgres"
	"jobharvest/internal/store"
)

// Container holds the process-wide dependencies a run needs: the database
// pool, the job store on top of it, and the optional seen cache.
type Container struct {
	Config config.Config
	DB     database.DB
	Store  *store.JobStore
	Cache  *store.SeenCache
}

func NewContainer(cfg config.Config) (*Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config: cfg,
		DB:     db,
		Store:  store.NewJobStore(db, cfg.Scrape.Table),
		Cache:  store.NewSeenCache(cfg.Redis),
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
