package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chgkbot",
		Short:         "Telegram-бот для игры в ЧГК по вопросам gotquestions.online",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML файл конфигурации (по умолчанию CONFIG_PATH)")

	root.AddCommand(serveCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(migrateCmd())

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить бота (polling или webhook) вместе с HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func parseCmd() *cobra.Command {
	var (
		cursorStart int64
		batchSize   int
		maxBatches  int
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Однократно пополнить пул вопросов и вывести отчет",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cursor *int64
			if cmd.Flags().Changed("cursor-start") {
				cursor = &cursorStart
			}
			return runParse(cursor, batchSize, maxBatches)
		},
	}

	cmd.Flags().Int64Var(&cursorStart, "cursor-start", 0, "начать обход с этого id пака")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "паков в одной пачке (по умолчанию из конфигурации)")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "максимум пачек за запуск (по умолчанию из конфигурации)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Управление SQL-миграциями PostgreSQL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate("up", 0)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Откатить одну миграцию",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate("down", 0)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Снять dirty-состояние, выставив версию",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version int
			if _, err := fmt.Sscanf(args[0], "%d", &version); err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return runMigrate("force", version)
		},
	})
	return cmd
}
