package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"popsim/internal/config"
	"popsim/internal/logging"
	"popsim/internal/model"
	"popsim/internal/repository"
	"popsim/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type seedCluster struct {
	name        string
	description string
	weight      float64
}

var clusters = []seedCluster{
	{"Daily commuters", "Suburban residents who drive or take the train into the city centre every weekday", 50},
	{"Retirees", "Long-time residents over 65, homeowners, attentive to local taxes and public safety", 30},
	{"Students", "University students renting shared flats, relying on bikes and public transport", 20},
}

var demographics = []model.Demographic{
	{Kind: model.DemographicAge, Label: "18-29", Weight: 22},
	{Kind: model.DemographicAge, Label: "30-44", Weight: 26},
	{Kind: model.DemographicAge, Label: "45-64", Weight: 31},
	{Kind: model.DemographicAge, Label: "65+", Weight: 21},
	{Kind: model.DemographicRegion, Label: "City centre", Weight: 35},
	{Kind: model.DemographicRegion, Label: "Inner suburbs", Weight: 40},
	{Kind: model.DemographicRegion, Label: "Outer suburbs", Weight: 25},
	{Kind: model.DemographicSocioProfessional, Label: "Executives", Weight: 18},
	{Kind: model.DemographicSocioProfessional, Label: "Employees", Weight: 30},
	{Kind: model.DemographicSocioProfessional, Label: "Manual workers", Weight: 20},
	{Kind: model.DemographicSocioProfessional, Label: "Retired", Weight: 22},
	{Kind: model.DemographicSocioProfessional, Label: "Students", Weight: 10},
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("failed to ping mongodb", zap.Error(err))
	}

	repos := repository.NewMongoRepos(ctx, client.Database(cfg.MongoDB), logger)
	zones := service.NewZoneService(repos, logger)
	clusterSvc := service.NewClusterService(repos, logger)

	zone := &model.Zone{
		Name:        "Demo metro area",
		Description: "Sample zone with three resident clusters",
	}
	if err := zones.Create(ctx, zone); err != nil {
		logger.Fatal("failed to create zone", zap.Error(err))
	}

	for _, c := range clusters {
		cluster := &model.Cluster{
			ZoneID:      zone.ID,
			Name:        c.name,
			Description: c.description,
			Weight:      c.weight,
		}
		if err := clusterSvc.Create(ctx, cluster); err != nil {
			logger.Fatal("failed to create cluster", zap.String("name", c.name), zap.Error(err))
		}
	}

	for _, d := range demographics {
		d := d
		d.ZoneID = zone.ID
		if err := zones.AddDemographic(ctx, &d); err != nil {
			logger.Fatal("failed to add demographic", zap.String("label", d.Label), zap.Error(err))
		}
	}

	fmt.Printf("Successfully created zone '%s' (%s) with %d clusters\n", zone.Name, zone.ID, len(clusters))
}
