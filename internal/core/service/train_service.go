package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/port"
)

type TrainService struct {
	repo port.TrainRepository
	log  *log.Helper
}

func NewTrainService(repo port.TrainRepository, logger log.Logger) *TrainService {
	return &TrainService{
		repo: repo,
		log:  log.NewHelper(log.With(logger, "module", "service/train")),
	}
}

// AddTrain registers a train with every seat available.
func (s *TrainService) AddTrain(ctx context.Context, in domain.NewTrain) (domain.Train, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Source = strings.TrimSpace(in.Source)
	in.Destination = strings.TrimSpace(in.Destination)

	switch {
	case in.Name == "":
		return domain.Train{}, domain.ValidationError{Field: "name", Msg: "is required"}
	case in.Source == "":
		return domain.Train{}, domain.ValidationError{Field: "source", Msg: "is required"}
	case in.Destination == "":
		return domain.Train{}, domain.ValidationError{Field: "destination", Msg: "is required"}
	case in.TotalSeats <= 0:
		return domain.Train{}, domain.ValidationError{Field: "total_seats", Msg: "must be positive"}
	}

	id, err := s.repo.CreateTrain(ctx, in)
	if err != nil {
		s.log.Errorw("msg", "create train failed", "name", in.Name, "err", err)
		return domain.Train{}, fmt.Errorf("create train: %w", err)
	}

	s.log.Infow("msg", "train added", "train_id", id, "name", in.Name, "total_seats", in.TotalSeats)
	return domain.Train{
		ID:          id,
		Name:        in.Name,
		Source:      in.Source,
		Destination: in.Destination,
		TotalSeats:  in.TotalSeats,
	}, nil
}

func (s *TrainService) SearchTrains(ctx context.Context, source, destination string) ([]domain.TrainAvailability, error) {
	source = strings.TrimSpace(source)
	destination = strings.TrimSpace(destination)
	if source == "" || destination == "" {
		return nil, domain.ValidationError{Msg: "source and destination are required"}
	}

	trains, err := s.repo.SearchTrains(ctx, source, destination)
	if err != nil {
		return nil, fmt.Errorf("search trains: %w", err)
	}
	if trains == nil {
		trains = []domain.TrainAvailability{}
	}
	return trains, nil
}
