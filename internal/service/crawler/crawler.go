package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	"github.com/yourusername/chgk-bot/internal/domain/repository"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
)

// Options задает объем одного запуска пополнения
type Options struct {
	TargetPerLevel int
	BatchSize      int
	MaxBatches     int
}

// Crawler пополняет пул вопросов, обходя паки по убывающему id
type Crawler struct {
	source      PackSource
	questions   repository.QuestionRepository
	state       repository.CrawlRepository
	baseURL     string
	cursorStart int64
	now         func() time.Time
}

// NewCrawler создает краулер. cursorStart > 0 задает начальный курсор вместо листинга.
func NewCrawler(source PackSource, questions repository.QuestionRepository, state repository.CrawlRepository, baseURL string, cursorStart int64) *Crawler {
	return &Crawler{
		source:      source,
		questions:   questions,
		state:       state,
		baseURL:     baseURL,
		cursorStart: cursorStart,
		now:         time.Now,
	}
}

// ResetCursor перезаписывает курсор (ручной запуск с заданной позиции)
func (c *Crawler) ResetCursor(ctx context.Context, cursor int64) error {
	return c.state.SetCursor(ctx, entity.ParserStateMain, cursor)
}

// Replenish выполняет один запуск пополнения. Ошибки не возвращаются: все сбои учитываются в результате.
func (c *Crawler) Replenish(ctx context.Context, opts Options) *entity.ReplenishResult {
	result := entity.NewReplenishResult()
	result.StartedAt = c.now().UTC()
	defer func() {
		result.Duration = c.now().Sub(result.StartedAt)
	}()

	stats, err := c.questions.PoolStats(ctx)
	if err != nil {
		log.Printf("[Crawler] Ошибка подсчета пула: %v", err)
		result.ParserErrors++
		return result
	}
	if stats.AllLevelsReach(opts.TargetPerLevel) {
		return result
	}
	counts := make(map[int]int64, len(stats.ByLevel))
	for level, n := range stats.ByLevel {
		counts[level] = n
	}

	cursor, ok := c.loadCursor(ctx, result)
	if !ok {
		return result
	}
	result.CursorBefore = cursor
	result.CursorAfter = cursor
	if cursor <= 0 {
		return result
	}

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for b := 0; b < opts.MaxBatches && cursor > 0; b++ {
		if b > 0 && levelsReach(counts, opts.TargetPerLevel) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		lo := cursor - int64(batchSize) + 1
		if lo < 1 {
			lo = 1
		}

		batch, added, complete := c.crawlRange(ctx, lo, cursor, result)
		if !complete {
			log.Printf("[Crawler] Батч %d..%d прерван: %v", lo, cursor, ctx.Err())
			break
		}
		batch.Cursor = lo - 1

		if err := c.state.CommitBatch(ctx, entity.ParserStateMain, batch); err != nil {
			log.Printf("[Crawler] Ошибка сохранения батча %d..%d: %v", lo, cursor, err)
			result.ParserErrors++
			break
		}

		for _, level := range added {
			result.AddQuestion(level)
			counts[level]++
		}
		result.Batches++
		cursor = lo - 1
		result.CursorAfter = cursor
	}

	log.Printf("[Crawler] Запуск завершен: добавлено %d, паков %d, курсор %d -> %d",
		result.AddedTotal, result.PacksChecked, result.CursorBefore, result.CursorAfter)
	return result
}

func (c *Crawler) loadCursor(ctx context.Context, result *entity.ReplenishResult) (int64, bool) {
	state, err := c.state.GetCursor(ctx, entity.ParserStateMain)
	if err == nil {
		return state.Cursor, true
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[Crawler] Ошибка чтения курсора: %v", err)
		result.ParserErrors++
		return 0, false
	}

	if c.cursorStart > 0 {
		return c.cursorStart, true
	}
	latest, err := c.source.LatestPackID(ctx)
	if err != nil {
		log.Printf("[Crawler] Не удалось определить последний пак: %v", err)
		result.NetworkErrors++
		return 0, false
	}
	log.Printf("[Crawler] Курсор инициализирован по листингу: %d", latest)
	return latest, true
}

// crawlRange загружает паки hi..lo по убыванию и собирает изменения батча.
// complete=false, если контекст отменен до конца диапазона.
func (c *Crawler) crawlRange(ctx context.Context, lo, hi int64, result *entity.ReplenishResult) (*repository.CrawlBatch, []int, bool) {
	batch := &repository.CrawlBatch{}
	var added []int
	seen := make(map[int64]struct{})

	for id := hi; id >= lo; id-- {
		if ctx.Err() != nil {
			return nil, nil, false
		}
		result.PacksChecked++

		fetched := c.source.FetchPack(ctx, id)
		result.NetworkRetries += fetched.Retries
		if fetched.Blocked {
			result.Blocked = true
		}

		switch fetched.Status {
		case FetchFound:
			result.PacksFound++
		case FetchNotFound:
			result.PacksNotFound++
			continue
		case FetchHTTPFailed:
			result.PacksFailedHTTP++
			log.Printf("[Crawler] Пак %d: HTTP ошибка: %v", id, fetched.Err)
			continue
		case FetchNetworkError:
			if ctx.Err() != nil {
				return nil, nil, false
			}
			result.NetworkErrors++
			log.Printf("[Crawler] Пак %d: сетевая ошибка: %v", id, fetched.Err)
			continue
		default:
			result.ParserErrors++
			log.Printf("[Crawler] Пак %d: ошибка разбора: %v", id, fetched.Err)
			continue
		}

		levels, err := c.collectPack(ctx, fetched.Pack, batch, seen, result)
		if err != nil {
			log.Printf("[Crawler] Пак %d: %v", id, err)
			result.ParserErrors++
			continue
		}
		added = append(added, levels...)
	}
	return batch, added, true
}

// collectPack добавляет пак и его вопросы в батч. Возвращает уровни новых вопросов.
func (c *Crawler) collectPack(ctx context.Context, raw *rawPack, batch *repository.CrawlBatch, seen map[int64]struct{}, result *entity.ReplenishResult) ([]int, error) {
	c1, c2 := raw.complexity()
	batch.Packs = append(batch.Packs, entity.Pack{
		ID:                  raw.ID,
		Title:               raw.Title,
		PubDate:             raw.pubDate(),
		ComplexityPrimary:   c1,
		ComplexitySecondary: c2,
		SourceURL:           entity.PackURL(c.baseURL, raw.ID),
	})

	var questions []rawQuestion
	for _, tour := range raw.Tours {
		for _, data := range tour.Questions {
			var q rawQuestion
			if err := json.Unmarshal(data, &q); err != nil || q.ID == nil {
				result.ParserErrors++
				continue
			}
			if _, dup := seen[*q.ID]; dup {
				continue
			}
			seen[*q.ID] = struct{}{}
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, *q.ID)
	}
	existing, err := c.questions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load existing questions: %w", err)
	}

	bucket, hasBucket := entity.DifficultyBucket(c1, c2)
	var levels []int
	for _, q := range questions {
		result.QuestionsSeen++

		if stored, ok := existing[*q.ID]; ok {
			result.QuestionsExisting++
			if stored.Backfill(q.RazdatkaText, q.RazdatkaPic) {
				batch.Backfills = append(batch.Backfills, *stored)
			}
			continue
		}

		takeNum, takeDen := q.take()
		takePercent, hasTake := entity.TakePercent(takeNum, takeDen)
		if !admit(q.TotalLikes, takeDen, takePercent, hasTake) {
			result.QuestionsFilteredLikes++
			continue
		}
		if !hasBucket {
			result.QuestionsFilteredBucketMissing++
			continue
		}

		question := entity.Question{
			ID:                      *q.ID,
			PackID:                  raw.ID,
			NumberInPack:            q.Number,
			Text:                    q.Text,
			SourceURL:               entity.QuestionURL(c.baseURL, *q.ID),
			RazdatkaText:            q.RazdatkaText,
			RazdatkaPicURL:          q.RazdatkaPic,
			Answer:                  q.Answer,
			Zachet:                  q.Zachet,
			Comment:                 q.Comment,
			Sources:                 q.Source,
			Likes:                   q.TotalLikes,
			TakeNum:                 takeNum,
			TakeDen:                 takeDen,
			PackComplexityPrimary:   c1,
			PackComplexitySecondary: c2,
		}
		if hasTake {
			question.TakePercent = &takePercent
		}
		batch.Questions = append(batch.Questions, question)
		levels = append(levels, bucket)
	}
	return levels, nil
}

// admit - фильтр допуска: лайки либо достаточная статистика взятия в разумном диапазоне
func admit(likes int, takeDen *int, takePercent float64, hasTake bool) bool {
	if likes >= 1 {
		return true
	}
	return hasTake && takeDen != nil && *takeDen >= 10 && takePercent >= 20 && takePercent <= 90
}

func levelsReach(counts map[int]int64, target int) bool {
	for level := entity.MinDifficulty; level <= entity.MaxDifficulty; level++ {
		if counts[level] < int64(target) {
			return false
		}
	}
	return true
}
