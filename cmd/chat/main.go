// A terminal chat client: opens (or creates) the conversation with a
// counterpart, folds the snapshot plus the live feed into a view, and
// sends each typed line as a message.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/dm-service/internal/auth"
	"github.com/yourorg/dm-service/internal/client"
	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/feed"
	"github.com/yourorg/dm-service/internal/logger"
	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/repository"
	"github.com/yourorg/dm-service/internal/service"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "config file path")
		token   = flag.String("token", "", "bearer token")
		otherID = flag.String("to", "", "counterpart user id")
	)
	flag.Parse()
	if *token == "" || *otherID == "" {
		log.Fatal("usage: chat -token <jwt> -to <user-id> [-config <path>]")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	zlog, err := logger.New(logger.Config{Env: cfg.App.Env, Level: "warn"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}

	jv, err := auth.NewJWTValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Alg, cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("jwt init: %v", err)
	}
	uid, err := jv.Validate(*token)
	if err != nil {
		log.Fatalf("invalid token: %v", err)
	}

	ctx := context.Background()
	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatalf("mongo init: %v", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	producer := feed.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	svc := service.NewChatService(
		repository.NewConversations(db.Collection("conversations")),
		repository.NewMessages(db.Collection("messages")),
		nil, // no attachments from the terminal
		producer,
		nil,
		zlog,
	)

	conv, err := svc.ResolveOrCreate(ctx, uid, *otherID)
	if err != nil {
		log.Fatalf("resolve conversation: %v", err)
	}

	sess, err := client.Open(ctx, svc, feed.NewSubscriber(rdb, zlog), conv.ID)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	defer sess.Close()

	render := func() {
		fmt.Print("\033[2J\033[H")
		for _, m := range sess.Messages() {
			printMessage(uid, m)
		}
		fmt.Print("> ")
	}
	sess.OnChange(render)

	if err := svc.MarkRead(ctx, conv.ID, uid); err != nil {
		zlog.Warnw("mark read", "err", err)
	}
	render()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" {
			return
		}
		if _, err := svc.Send(ctx, conv.ID, uid, line, nil); err != nil {
			fmt.Printf("send failed (retry?): %v\n> ", err)
		}
	}
}

func printMessage(selfID string, m models.Message) {
	who := m.SenderID
	if m.SenderID == selfID {
		who = "me"
	}
	switch {
	case m.Deleted():
		fmt.Printf("[%s] %s: (message deleted)\n", m.CreatedAt.Format("15:04"), who)
	default:
		line := m.Content
		if n := len(m.Attachments); n > 0 {
			line = fmt.Sprintf("%s (%d attachment(s))", line, n)
		}
		if m.UpdatedAt != nil {
			line += " (edited)"
		}
		if m.SenderID == selfID && m.ReadAt != nil {
			line += " ✓✓"
		}
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, line)
	}
}
