package scheduling

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/visiblelab/visibility-bot/internal/models"
)

// Assignment pairs one prompt with the account scored for it.
type Assignment struct {
	Prompt   models.Prompt
	BrandID  uint
	Account  models.AutomationAccount
	Degraded bool
}

// interleave spreads each brand's prompts proportionally across the
// whole sequence so no brand's prompts cluster together. Each item of a
// brand with n prompts gets the fractional position (i+0.5)/n and the
// merged sequence is sorted by that key; a brand holding the majority
// of prompts ends up in short evenly-spaced runs instead of a long
// tail. (A plain head-to-tail round robin leaves the largest brand
// clustered at the end once the small queues drain.)
func interleave(assignments []Assignment) []Assignment {
	byBrand := make(map[uint][]Assignment)
	var brandOrder []uint
	for _, a := range assignments {
		if _, seen := byBrand[a.BrandID]; !seen {
			brandOrder = append(brandOrder, a.BrandID)
		}
		byBrand[a.BrandID] = append(byBrand[a.BrandID], a)
	}

	// Larger queues first so equal stride keys resolve toward spreading
	// the dominant brand.
	sort.SliceStable(brandOrder, func(i, j int) bool {
		return len(byBrand[brandOrder[i]]) > len(byBrand[brandOrder[j]])
	})

	type keyed struct {
		assignment Assignment
		key        float64
	}

	items := make([]keyed, 0, len(assignments))
	for _, brandID := range brandOrder {
		queue := byBrand[brandID]
		n := float64(len(queue))
		for i, a := range queue {
			items = append(items, keyed{assignment: a, key: (float64(i) + 0.5) / n})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

	out := make([]Assignment, len(items))
	for i, item := range items {
		out[i] = item.assignment
	}
	return out
}

// chunk splits the interleaved sequence into batches of random size
// between min and max.
func chunk(assignments []Assignment, min, max int, rng *rand.Rand) [][]Assignment {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}

	var chunks [][]Assignment
	for len(assignments) > 0 {
		size := min
		if max > min {
			size = min + rng.Intn(max-min+1)
		}
		if size > len(assignments) {
			size = len(assignments)
		}
		chunks = append(chunks, assignments[:size])
		assignments = assignments[size:]
	}
	return chunks
}

// timeSlots draws n random execution timestamps inside the daily
// window, sorts them ascending, and pushes any slot forward that lands
// closer than the minimum spacing to its predecessor. The result is
// strictly increasing with at least minSpacing between neighbours.
func timeSlots(date time.Time, n int, startHour, endHour int, minSpacing time.Duration, rng *rand.Rand) []time.Time {
	windowStart := time.Date(date.Year(), date.Month(), date.Day(), startHour, 0, 0, 0, date.Location())
	windowSeconds := int64((endHour - startHour) * 3600)

	slots := make([]time.Time, n)
	for i := range slots {
		slots[i] = windowStart.Add(time.Duration(rng.Int63n(windowSeconds)) * time.Second)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	for i := 1; i < len(slots); i++ {
		earliest := slots[i-1].Add(minSpacing)
		if slots[i].Before(earliest) {
			slots[i] = earliest
		}
	}
	return slots
}

// buildBatches converts chunks and slots into persistable rows. Each
// batch carries the account assigned to its first prompt; scoring runs
// once per prompt before chunking, so prompts inside one chunk were
// scored against the same pool snapshot.
func buildBatches(date string, chunks [][]Assignment, slots []time.Time) []models.ScheduleBatch {
	batches := make([]models.ScheduleBatch, 0, len(chunks))
	for i, c := range chunks {
		promptIDs := make(models.UintList, 0, len(c))
		for _, a := range c {
			promptIDs = append(promptIDs, a.Prompt.ID)
		}

		batches = append(batches, models.ScheduleBatch{
			ID:            uuid.NewString(),
			ScheduleDate:  date,
			BatchNumber:   i + 1,
			ExecutionTime: slots[i],
			Status:        models.BatchPending,
			PromptIDs:     promptIDs,
			AccountID:     c[0].Account.ID,
		})
	}
	return batches
}
