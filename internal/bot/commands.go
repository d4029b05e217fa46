package bot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Команды бота
const (
	cmdStart     = "start"
	cmdNext      = "next"
	cmdStop      = "stop"
	cmdStats     = "stats"
	cmdReplenish = "replenish"
)

// command - разобранная команда из текста сообщения
type command struct {
	Name string
	Args []string
}

// parseCommand разбирает "/cmd@bot arg1 arg2". ok=false для обычного текста
// и для команд, адресованных другому боту.
func parseCommand(text, botUsername string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.Index(name, "@"); at >= 0 {
		mention := name[at+1:]
		name = name[:at]
		if botUsername == "" || mention != strings.ToLower(botUsername) {
			return command{}, false
		}
	}
	if name == "" {
		return command{}, false
	}
	return command{Name: name, Args: fields[1:]}, true
}

// parseStartArgs разбирает аргументы /start: сложность (0 или "-" - любая),
// минимум лайков и минимальный процент взятия. Пропущенные значения берутся из defaults.
func parseStartArgs(args []string, defaults entity.SelectionFilter) (entity.SelectionFilter, error) {
	filter := entity.SelectionFilter{
		MinLikes:       defaults.MinLikes,
		MinTakePercent: defaults.MinTakePercent,
	}
	if len(args) > 3 {
		return filter, fmt.Errorf("too many arguments: %d", len(args))
	}

	if len(args) >= 1 && args[0] != "0" && args[0] != "-" {
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return filter, fmt.Errorf("difficulty %q: %w", args[0], err)
		}
		if !entity.IsValidDifficulty(level) {
			return filter, fmt.Errorf("difficulty %d out of range", level)
		}
		filter.Difficulty = &level
	}
	if len(args) >= 2 {
		likes, err := strconv.Atoi(args[1])
		if err != nil || likes < 0 {
			return filter, fmt.Errorf("min likes %q is invalid", args[1])
		}
		filter.MinLikes = likes
	}
	if len(args) == 3 {
		raw := strings.TrimSuffix(strings.ReplaceAll(args[2], ",", "."), "%")
		percent, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(percent) || percent < 0 || percent > 100 {
			return filter, fmt.Errorf("min take percent %q is invalid", args[2])
		}
		filter.MinTakePercent = percent
	}
	return filter, filter.Validate()
}

// parseReplenishArgs разбирает аргументы /replenish: курсор и число батчей
func parseReplenishArgs(args []string) (*int64, int, error) {
	if len(args) > 2 {
		return nil, 0, fmt.Errorf("too many arguments: %d", len(args))
	}
	var cursor *int64
	if len(args) >= 1 && args[0] != "-" {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v < 0 {
			return nil, 0, fmt.Errorf("cursor %q is invalid", args[0])
		}
		cursor = &v
	}
	batches := 0
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return nil, 0, fmt.Errorf("batches %q is invalid", args[1])
		}
		batches = v
	}
	return cursor, batches, nil
}
