package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
)

func TestSeedDemo_CreatesDataSet(t *testing.T) {
	// GIVEN: an empty workspace
	a := newTestAPI(t)

	// WHEN
	rec := a.do(http.MethodPost, "/api/settings/demo-seed", nil)

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[SeedResponse](t, rec)
	assert.Equal(t, len(demoStudents), res.Students)
	assert.Equal(t, len(demoStudents), res.Series)
	assert.Equal(t, len(demoStudents)*demoSeriesCount+demoPastLessons, res.Lessons)

	students := decode[[]StudentSummaryDTO](t, a.do(http.MethodGet, "/api/students", nil))
	require.Len(t, students, len(demoStudents))

	lessons, err := a.svc.ListLessons(context.Background(), testOwner, schedule.LessonFilter{})
	require.NoError(t, err)
	assert.Len(t, lessons, res.Lessons)
}

func TestSeedDemo_PastLessonsFollowPattern(t *testing.T) {
	a := newTestAPI(t)
	_, err := SeedDemo(context.Background(), a.svc, testOwner)
	require.NoError(t, err)

	lessons, err := a.svc.ListLessons(context.Background(), testOwner, schedule.LessonFilter{})
	require.NoError(t, err)

	var standalone []schedule.Lesson
	for _, l := range lessons {
		if !l.InSeries() {
			standalone = append(standalone, l)
		}
	}
	require.Len(t, standalone, demoPastLessons)

	counts := map[schedule.LessonStatus]int{}
	for _, l := range standalone {
		counts[l.Status]++
		assert.True(t, l.StartAt.Before(testNow), "past lesson %s starts in the future", l.ID)
		assert.True(t, l.AmountPaid.LessThanOrEqual(l.FeeTotal), "lesson %s overpaid", l.ID)
	}
	// idx 0, 5, 10 are no-shows; idx 7 is cancelled.
	assert.Equal(t, 3, counts[schedule.StatusNoShow])
	assert.Equal(t, 1, counts[schedule.StatusCancelled])
	assert.Equal(t, demoPastLessons-4, counts[schedule.StatusDone])
}

func TestSeedDemo_RequiresOwner(t *testing.T) {
	a := newTestAPI(t)
	rec := a.doAs("", http.MethodPost, "/api/settings/demo-seed", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
