package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"social-chat/internal/chatclient"
	"social-chat/internal/domain"
)

type cliConfig struct {
	APIURL       string `env:"CHAT_API_URL" envDefault:"http://localhost:8080"`
	Email        string `env:"CHAT_EMAIL"`
	Password     string `env:"CHAT_PASSWORD"`
	HistoryLimit int    `env:"CHAT_HISTORY_LIMIT" envDefault:"20"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	in := newConsole(os.Stdin)

	logger := zap.NewExample()
	defer logger.Sync()

	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("config invalida", zap.Error(err))
	}

	client := chatclient.New(cfg.APIURL, zap.NewStdLog(logger))

	email := cfg.Email
	if email == "" {
		email = in.prompt("Email: ")
	}
	password := cfg.Password
	if password == "" {
		password = in.prompt("Password: ")
	}
	if err := client.Login(ctx, email, password); err != nil {
		logger.Fatal("login", zap.Error(err))
	}

	for {
		room, err := selectRoom(ctx, in, client)
		if err != nil {
			logger.Fatal("seleccionar sala", zap.Error(err))
		}
		if room == nil {
			return
		}
		if err := chatFlow(ctx, in, client, *room, cfg.HistoryLimit, logger); err != nil {
			fmt.Printf("Error en chat: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func selectRoom(ctx context.Context, in *console, client *chatclient.Client) (*domain.ChatRoom, error) {
	for {
		rooms, err := client.Rooms(ctx)
		if err != nil {
			return nil, err
		}

		fmt.Println("===== Salas =====")
		for i, r := range rooms {
			kind := "directa"
			if r.IsGroup {
				kind = "grupo"
			}
			fmt.Printf("[%d] %s (%s, %d miembros)\n", i+1, r.Name, kind, len(r.MemberIDs))
		}
		fmt.Println("[C] Crear sala")
		fmt.Println("[S] Salir")
		choice := in.prompt("Selecciona una sala: ")

		switch {
		case strings.EqualFold(choice, "S"):
			return nil, nil
		case strings.EqualFold(choice, "C"):
			room, err := createRoomFlow(ctx, in, client)
			if err != nil {
				fmt.Printf("Error creando sala: %v\n", err)
				continue
			}
			return &room, nil
		}

		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(rooms) {
			fmt.Println("Seleccion invalida.")
			continue
		}
		return &rooms[idx-1], nil
	}
}

func createRoomFlow(ctx context.Context, in *console, client *chatclient.Client) (domain.ChatRoom, error) {
	name := in.prompt("Nombre de la sala: ")
	isGroup := strings.EqualFold(in.prompt("Es grupal? [s/N]: "), "s")
	raw := in.prompt("IDs de miembros separados por coma: ")

	ids := lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (int64, bool) {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return id, err == nil && id > 0
	})
	return client.CreateRoom(ctx, name, isGroup, ids)
}

func chatFlow(ctx context.Context, in *console, client *chatclient.Client, room domain.ChatRoom, historyLimit int, logger *zap.Logger) error {
	history, err := client.History(ctx, room.ID, historyLimit)
	if err != nil {
		return fmt.Errorf("historial: %w", err)
	}
	for _, m := range history {
		fmt.Println(formatMessage(m.SenderID, lo.FromPtr(m.Content), lo.FromPtr(m.FileURL)))
	}

	conn, err := client.Join(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("conectar: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ev, err := conn.Next()
			if err != nil {
				logger.Debug("websocket closed", zap.Error(err))
				return
			}
			switch ev.Type {
			case "message":
				fmt.Println(formatMessage(ev.UserID, ev.Message, ev.FileURL))
			case "typing":
				if ev.IsTyping {
					fmt.Printf("  (%s esta escribiendo...)\n", ev.Username)
				}
			}
		}
	}()

	fmt.Printf("---- %s (escribe 'salir' para volver) ----\n", room.Name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return fmt.Errorf("conexion cerrada por el servidor")
		case text, ok := <-in.lines:
			if !ok || strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit") {
				return nil
			}
			if text == "" {
				continue
			}
			if err := conn.Send(text); err != nil {
				return fmt.Errorf("enviar: %w", err)
			}
		}
	}
}

func formatMessage(senderID int64, text, fileURL string) string {
	if fileURL != "" {
		return fmt.Sprintf("[%d] adjunto: %s", senderID, fileURL)
	}
	return fmt.Sprintf("[%d] %s", senderID, text)
}

// console lee stdin desde una sola goroutine para que el modo chat y los
// menus compartan la misma fuente de lineas.
type console struct {
	lines chan string
}

func newConsole(r io.Reader) *console {
	c := &console{lines: make(chan string)}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			c.lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return c
}

func (c *console) prompt(label string) string {
	fmt.Print(label)
	line, ok := <-c.lines
	if !ok {
		fmt.Println()
		os.Exit(0)
	}
	return line
}
