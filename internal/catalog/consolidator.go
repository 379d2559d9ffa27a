package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"folio/internal/config"
	"folio/internal/identity"
	"folio/internal/logging"
)

// Consolidator attaches editions to works through the identifier equivalence
// graph and merges works that describe the same text.
type Consolidator struct {
	store    *Store
	resolver *identity.Resolver
	cfg      *config.Config
	logger   *slog.Logger
}

// NewConsolidator wires the consolidator.
func NewConsolidator(store *Store, resolver *identity.Resolver, cfg *config.Config, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consolidator{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "consolidator"),
	}
}

// AttachOrCreateWork places an edition under a work. Candidate works come
// from the edition's identifier closure: any work already holding an edition
// whose identifier the closure reaches. The best candidate above the attach
// threshold wins; otherwise the edition seeds a new work. The work's
// presentation is recomputed afterwards either way.
func (c *Consolidator) AttachOrCreateWork(ctx context.Context, edition Edition) (Work, error) {
	if edition.ID == 0 {
		return Work{}, fmt.Errorf("edition %s/%s not persisted", edition.Primary, edition.Source)
	}
	if edition.Attached() {
		return c.store.GetWork(ctx, edition.WorkID)
	}

	closure, err := c.resolver.Closure(ctx, edition.Primary, c.cfg.Resolver.MaxDepth, c.cfg.Resolver.MinStrength)
	if err != nil {
		return Work{}, fmt.Errorf("resolve closure: %w", err)
	}
	siblings, err := c.store.EditionsForIdentifiers(ctx, closure.Values())
	if err != nil {
		return Work{}, err
	}

	bestWorkID, bestScore := int64(0), 0.0
	scored := make(map[int64]bool)
	for _, sibling := range siblings {
		if !sibling.Attached() || sibling.ID == edition.ID || scored[sibling.WorkID] {
			continue
		}
		scored[sibling.WorkID] = true
		score, scoreErr := c.scoreAgainstWork(ctx, edition, sibling.WorkID)
		if scoreErr != nil {
			return Work{}, scoreErr
		}
		if score > bestScore {
			bestWorkID, bestScore = sibling.WorkID, score
		}
	}

	var work Work
	if bestWorkID != 0 && bestScore >= c.cfg.Consolidation.AttachThreshold {
		work, err = c.store.GetWork(ctx, bestWorkID)
		if err != nil {
			return Work{}, err
		}
		c.logger.DebugContext(ctx, "edition attached to existing work",
			logging.String(logging.FieldIdentifier, edition.Primary.String()),
			logging.Int64("work_id", work.ID),
			logging.Float64("score", bestScore))
	} else {
		work, err = c.store.CreateWork(ctx, edition.Title, firstAuthor(edition.Authors))
		if err != nil {
			return Work{}, err
		}
		c.logger.DebugContext(ctx, "edition seeded new work",
			logging.String(logging.FieldIdentifier, edition.Primary.String()),
			logging.Int64("work_id", work.ID))
	}

	if err := c.store.AttachEdition(ctx, edition.ID, work.ID); err != nil {
		return Work{}, err
	}
	if err := c.store.AssignPoolsToWork(ctx, edition.Primary, work.ID); err != nil {
		return Work{}, err
	}
	if err := c.RecomputePresentation(ctx, work.ID); err != nil {
		return Work{}, err
	}
	return c.store.GetWork(ctx, work.ID)
}

// scoreAgainstWork compares an edition against every member of a work and
// keeps the best score. A single strong member match is enough; the weakest
// member must not veto the attachment.
func (c *Consolidator) scoreAgainstWork(ctx context.Context, edition Edition, workID int64) (float64, error) {
	members, err := c.store.EditionsForWork(ctx, workID)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, member := range members {
		score := Similarity(
			edition.Title, edition.Authors,
			member.Title, member.Authors,
			c.cfg.Consolidation.TitleWeight, c.cfg.Consolidation.AuthorWeight)
		if score > best {
			best = score
		}
	}
	return best, nil
}

// MergeInto folds the source work into the target when their presentations
// clear the merge threshold. The move is transactional: editions, pools, and
// the retirement all land or none do.
func (c *Consolidator) MergeInto(ctx context.Context, sourceID, targetID int64) error {
	source, err := c.store.GetWork(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("load source work: %w", err)
	}
	target, err := c.store.GetWork(ctx, targetID)
	if err != nil {
		return fmt.Errorf("load target work: %w", err)
	}
	if source.Retired {
		return fmt.Errorf("work %d is already retired", sourceID)
	}

	score := Similarity(
		source.Title, splitAuthors(source.Author),
		target.Title, splitAuthors(target.Author),
		c.cfg.Consolidation.TitleWeight, c.cfg.Consolidation.AuthorWeight)
	if score < c.cfg.Consolidation.MergeThreshold {
		return fmt.Errorf("works %d and %d score %.2f, below merge threshold %.2f",
			sourceID, targetID, score, c.cfg.Consolidation.MergeThreshold)
	}

	sourceMembers, err := c.store.EditionsForWork(ctx, sourceID)
	if err != nil {
		return err
	}
	targetMembers, err := c.store.EditionsForWork(ctx, targetID)
	if err != nil {
		return err
	}
	title, author := votePresentation(append(targetMembers, sourceMembers...))

	if err := c.store.MergeWorks(ctx, sourceID, targetID, title, author); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "works merged",
		logging.Int64("source_work_id", sourceID),
		logging.Int64("target_work_id", targetID),
		logging.Float64("score", score))
	return nil
}

// RecomputePresentation refreshes a work's display title and author by
// plurality vote over its members. Ties go to the earliest-created edition.
func (c *Consolidator) RecomputePresentation(ctx context.Context, workID int64) error {
	members, err := c.store.EditionsForWork(ctx, workID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	title, author := votePresentation(members)
	return c.store.SetWorkPresentation(ctx, workID, title, author)
}

// votePresentation picks the most common normalized title and author among
// the members. Members must be ordered earliest-first so that ties resolve
// to the earliest edition's spelling.
func votePresentation(members []Edition) (string, string) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})

	title := plurality(members, func(e Edition) string { return e.Title })
	author := plurality(members, func(e Edition) string { return firstAuthor(e.Authors) })
	return title, author
}

// plurality returns the display value of the most frequent normalized value,
// skipping blanks. First-seen order breaks ties.
func plurality(members []Edition, value func(Edition) string) string {
	type bucket struct {
		display string
		count   int
		seen    int
	}
	buckets := make(map[string]*bucket)
	order := 0
	for _, member := range members {
		display := strings.TrimSpace(value(member))
		if display == "" {
			continue
		}
		key := normalizeText(display)
		if key == "" {
			continue
		}
		entry, ok := buckets[key]
		if !ok {
			entry = &bucket{display: display, seen: order}
			buckets[key] = entry
		}
		entry.count++
		order++
	}

	var winner *bucket
	for _, entry := range buckets {
		if winner == nil || entry.count > winner.count ||
			(entry.count == winner.count && entry.seen < winner.seen) {
			winner = entry
		}
	}
	if winner == nil {
		return ""
	}
	return winner.display
}

func firstAuthor(authors []string) string {
	for _, author := range authors {
		if trimmed := strings.TrimSpace(author); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAuthors(author string) []string {
	if strings.TrimSpace(author) == "" {
		return nil
	}
	return []string{author}
}
