package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/config"
	"github.com/lorancew-l/proto-testing-sub000/internal/logging"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/repository"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	research := sampleResearch()
	repo := repository.NewResearchRepo(client.Database(cfg.MongoDB))
	if err := repo.Upsert(ctx, research); err != nil {
		logger.Fatal("failed to seed research", zap.Error(err))
	}

	logger.Info("seeded research",
		zap.String("id", research.ID),
		zap.Int("revision", research.Revision),
		zap.Int("questions", len(research.Questions)),
	)
}

func sampleResearch() *model.Research {
	strptr := func(s string) *string { return &s }

	return &model.Research{
		ID:       "checkout-usability",
		Revision: 1,
		Title:    "Checkout flow usability",
		Questions: []model.Question{
			{
				ID:             "device",
				Type:           model.QuestionTypeSingle,
				Text:           "Which device do you shop on most often?",
				RequiresAnswer: true,
				Answers: []model.AnswerOption{
					{ID: "phone", Text: "Phone"},
					{ID: "tablet", Text: "Tablet"},
					{ID: "desktop", Text: "Desktop"},
				},
			},
			{
				ID:   "payment",
				Type: model.QuestionTypeMultiple,
				Text: "Which payment methods do you use?",
				Answers: []model.AnswerOption{
					{ID: "card", Text: "Card"},
					{ID: "wallet", Text: "Wallet"},
					{ID: "invoice", Text: "Invoice"},
				},
			},
			{
				ID:   "checkout-task",
				Type: model.QuestionTypePrototype,
				Text: "Add the sneakers to the cart and pay for them.",
				Screens: []model.Screen{
					{
						ID:            "catalog",
						ImageRef:      "screens/catalog.png",
						IsStartScreen: true,
						Areas: []model.Area{
							{ID: "buy", Rect: model.Rect{X: 40, Y: 300, Width: 120, Height: 48}, GoToScreenID: strptr("cart")},
						},
					},
					{
						ID:       "cart",
						ImageRef: "screens/cart.png",
						Areas: []model.Area{
							{ID: "back", Rect: model.Rect{X: 0, Y: 0, Width: 48, Height: 48}, GoToScreenID: strptr("catalog")},
							{ID: "pay", Rect: model.Rect{X: 40, Y: 520, Width: 280, Height: 56}, GoToScreenID: strptr("done")},
						},
					},
					{
						ID:             "done",
						ImageRef:       "screens/done.png",
						IsTargetScreen: true,
					},
				},
			},
			{
				ID:             "ease",
				Type:           model.QuestionTypeRating,
				Text:           "How easy was it to pay?",
				RequiresAnswer: true,
				Min:            1,
				Max:            5,
			},
			{
				ID:        "comment",
				Type:      model.QuestionTypeFreeText,
				Text:      "Anything that slowed you down?",
				TextLimit: 500,
			},
		},
	}
}
