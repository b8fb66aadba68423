package main

import (
	"context"

	"github.com/kinoteka/kinoteka/pkg/config"
	"github.com/kinoteka/kinoteka/pkg/database"
	"github.com/kinoteka/kinoteka/pkg/migrations"
	"github.com/kinoteka/kinoteka/pkg/version"
	"github.com/kinoteka/kinoteka/pkg/worker"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/spf13/afero"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting kinoteka", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr := worker.New(cfg, db, afero.NewOsFs())

	graceful := signals.Setup()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
