package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/linguaroom/linguaroom/internal/api"
	"github.com/linguaroom/linguaroom/internal/domain"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List open practice rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		client, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		rooms, err := client.ListRooms(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tTOPIC\tMAX")
		for _, r := range rooms {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Name, r.Language, r.Topic, r.MaxParticipants)
		}
		return w.Flush()
	},
}

var (
	createLanguage string
	createTopic    string
	createPrivate  bool
	createMax      int
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a practice room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		client, _, err := authedClient(ctx)
		if err != nil {
			return err
		}
		room, err := client.CreateRoom(ctx, api.CreateRoomParams{
			Name:            domain.RoomName(args[0]),
			Language:        createLanguage,
			Topic:           createTopic,
			Private:         createPrivate,
			MaxParticipants: createMax,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created room %s (%s)\n", room.Name, room.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createLanguage, "language", "en", "practice language")
	createCmd.Flags().StringVar(&createTopic, "topic", "", "conversation topic")
	createCmd.Flags().BoolVar(&createPrivate, "private", false, "invite only")
	createCmd.Flags().IntVar(&createMax, "max", 8, "max participants")
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(createCmd)
}
