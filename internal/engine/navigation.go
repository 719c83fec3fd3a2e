package engine

import (
	"time"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// NextQuestion applies the linear rule: the entry after current, or finished
func NextQuestion(c *Compiled, current int) (next int, finished bool) {
	next = current + 1
	if next >= c.Len() {
		return -1, true
	}
	return next, false
}

// newRecord builds the Answer Stack entry for a question that just became current.
// Prototype records start with a visit on the start screen.
func newRecord(q *model.Question, g *Graph, env Env) model.AnswerRecord {
	rec := model.AnswerRecord{
		QuestionID: q.ID,
		Type:       q.Type,
	}
	if !q.IsPrototype() || g == nil {
		return rec
	}
	now := env.now()
	rec.StartTs = &now
	start := g.StartScreen()
	rec.ScreenVisits = []model.ScreenVisit{newVisit(start, now, env)}
	if g.IsTarget(start) {
		rec.Completed = true
	}
	return rec
}

func newVisit(screenID string, at time.Time, env Env) model.ScreenVisit {
	return model.ScreenVisit{
		ScreenID: screenID,
		VisitID:  env.newID(),
		StartTs:  at,
		Clicks:   []model.Click{},
	}
}

// applyClick records a click on the current screen and follows the hit area's edge.
// Misclicks, dead regions and dangling edges are recorded without navigation.
func applyClick(rec *model.AnswerRecord, g *Graph, x, y float64, env Env) Resolution {
	visit := rec.CurrentVisit()
	if visit == nil {
		return Resolution{}
	}
	now := env.now()
	res := g.Resolve(visit.ScreenID, x, y)
	visit.Clicks = append(visit.Clicks, model.Click{X: x, Y: y, AreaID: res.AreaID, Ts: now})

	if !res.Navigates() {
		return res
	}
	end := now
	visit.EndTs = &end
	rec.ScreenVisits = append(rec.ScreenVisits, newVisit(res.Target, now, env))
	if g.IsTarget(res.Target) {
		rec.Completed = true
	}
	return res
}

// closeRecord stamps the end of a prototype record when its step completes
func closeRecord(rec *model.AnswerRecord, env Env) {
	if rec.Type != model.QuestionTypePrototype {
		return
	}
	now := env.now()
	if rec.EndTs == nil {
		rec.EndTs = &now
	}
	if v := rec.CurrentVisit(); v != nil && v.EndTs == nil {
		end := now
		v.EndTs = &end
	}
}
