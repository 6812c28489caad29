// Package service wires the datastore, feature provider, ranker and the
// optional outputs into a runnable ranking service.
package service

import (
	"context"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/datastore"
	"github.com/wildlens/wildlens-go/internal/features"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/mqtt"
	"github.com/wildlens/wildlens-go/internal/notification"
	"github.com/wildlens/wildlens-go/internal/observability"
	"github.com/wildlens/wildlens-go/internal/ranking"
)

// Service holds the components of a running ranking service.
type Service struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Metrics  *observability.Metrics
	Ranker   *ranking.Ranker

	mqttClient mqtt.Client
}

// New opens the datastore and builds the ranker with every enabled output.
// Close releases what New opened.
func New(settings *conf.Settings) (*Service, error) {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	store, err := datastore.New(settings, datastore.WithMetrics(m.Datastore))
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	s := &Service{Settings: settings, Store: store, Metrics: m}

	provider := features.NewStoreProvider(store, features.Config{
		Dimension: settings.Features.Dimension,
		CacheTTL:  settings.Features.CacheTTL,
	})

	opts := []ranking.Option{
		ranking.WithRecorder(m.ActiveLearning),
		ranking.WithSelectionRecorder(m.ActiveLearning),
	}

	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings), m.MQTT)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mqttClient = client
		opts = append(opts, ranking.WithPublisher(mqtt.NewRankingPublisher(client, settings.MQTT.Topic)))
		log.Info("ranking updates will be published over MQTT",
			logger.String("broker", settings.MQTT.Broker),
			logger.String("topic", settings.MQTT.Topic))
	}

	if settings.Notification.Enabled {
		notifier, err := notification.NewShoutrrrNotifier(settings, m.Notification)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, ranking.WithNotifier(notifier))
	}

	ranker, err := ranking.NewRanker(store, provider, ranking.ConfigFromSettings(settings), opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Ranker = ranker
	return s, nil
}

// Close disconnects from the broker and closes the datastore.
func (s *Service) Close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := s.Store.Close(); err != nil {
		GetLogger().Warn("failed to close datastore", logger.Error(err))
	}
}

// Serve runs the scheduler and the metrics endpoint until ctx ends.
func (s *Service) Serve(ctx context.Context) error {
	log := GetLogger()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.Settings.Metrics.Enabled {
		endpoint, err := observability.NewEndpoint(s.Settings, s.Metrics)
		if err != nil {
			return err
		}
		if err := endpoint.Start(ctx); err != nil {
			return err
		}
		defer func() {
			cancel()
			endpoint.Wait()
		}()
	}

	if !s.Settings.Scheduler.Enabled {
		log.Info("ranking scheduler disabled, serving metrics only")
		<-ctx.Done()
		return nil
	}

	scheduler := ranking.NewScheduler(s.Store, s.Ranker, nil,
		ranking.SchedulerConfigFromSettings(s.Settings), s.Metrics.ActiveLearning)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down ranking service")
	if err := scheduler.Stop(); err != nil {
		log.Error("failed to stop ranking scheduler", logger.Error(err))
		return err
	}
	return nil
}

// GetLogger returns the service module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("service")
}
