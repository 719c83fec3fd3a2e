package engine

import (
	"fmt"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// DanglingEdge is an area whose goToScreenId names a screen that does not exist
type DanglingEdge struct {
	QuestionID string `json:"questionId"`
	ScreenID   string `json:"screenId"`
	AreaID     string `json:"areaId"`
	Target     string `json:"target"`
}

// Resolution is the outcome of hit-testing a click on a screen
type Resolution struct {
	AreaID   *string // nil on a misclick
	Target   string  // "" when no navigation happens
	Dangling bool
}

// Navigates reports whether the click moves the respondent to another screen
func (r Resolution) Navigates() bool {
	return r.Target != "" && !r.Dangling
}

type edge struct {
	areaID   string
	rect     model.Rect
	target   string // "" for a dead region
	dangling bool
}

// Graph is the materialized screen graph of one prototype question
type Graph struct {
	questionID string
	start      string
	screens    map[string]*model.Screen
	areas      map[string][]edge // screenID -> outgoing edges in stacking order
	dangling   []DanglingEdge
}

func buildGraph(q *model.Question) *Graph {
	g := &Graph{
		questionID: q.ID,
		screens:    make(map[string]*model.Screen, len(q.Screens)),
		areas:      make(map[string][]edge, len(q.Screens)),
	}
	for i := range q.Screens {
		s := &q.Screens[i]
		g.screens[s.ID] = s
		if g.start == "" && s.IsStartScreen {
			g.start = s.ID
		}
	}
	if g.start == "" && len(q.Screens) > 0 {
		g.start = q.Screens[0].ID
	}

	for i := range q.Screens {
		s := &q.Screens[i]
		for j := range s.Areas {
			a := &s.Areas[j]
			e := edge{areaID: a.ID, rect: a.Rect, target: a.Target()}
			if e.target != "" && !g.HasScreen(e.target) {
				e.dangling = true
				g.dangling = append(g.dangling, DanglingEdge{
					QuestionID: q.ID,
					ScreenID:   s.ID,
					AreaID:     a.ID,
					Target:     e.target,
				})
			}
			g.areas[s.ID] = append(g.areas[s.ID], e)
		}
	}
	return g
}

// StartScreen is the first screen flagged as start, else the first authored screen
func (g *Graph) StartScreen() string {
	return g.start
}

// IsTarget reports whether screenID is a target screen
func (g *Graph) IsTarget(screenID string) bool {
	s, ok := g.screens[screenID]
	return ok && s.IsTargetScreen
}

// HasScreen reports whether screenID exists in the graph
func (g *Graph) HasScreen(screenID string) bool {
	_, ok := g.screens[screenID]
	return ok
}

// Next follows the first edge of areaID on screenID
func (g *Graph) Next(screenID, areaID string) (target string, dangling bool) {
	for _, e := range g.areas[screenID] {
		if e.areaID == areaID {
			return e.target, e.dangling
		}
	}
	return "", false
}

// Resolve hit-tests a click. Overlapping areas resolve to the first in stacking order.
func (g *Graph) Resolve(screenID string, x, y float64) Resolution {
	for _, e := range g.areas[screenID] {
		if !e.rect.Contains(x, y) {
			continue
		}
		id := e.areaID
		return Resolution{AreaID: &id, Target: e.target, Dangling: e.dangling}
	}
	return Resolution{}
}

// Dangling lists the edges pointing at absent screens
func (g *Graph) Dangling() []DanglingEdge {
	return append([]DanglingEdge(nil), g.dangling...)
}

// Compiled is a research with its lookup tables built once per revision
type Compiled struct {
	research *model.Research
	index    map[string]int
	graphs   map[string]*Graph
}

// CompileResearch validates r and materializes the prototype graphs
func CompileResearch(r *model.Research) (*Compiled, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil research", model.ErrDefinition)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := &Compiled{
		research: r,
		index:    make(map[string]int, len(r.Questions)),
		graphs:   make(map[string]*Graph),
	}
	for i := range r.Questions {
		q := &r.Questions[i]
		c.index[q.ID] = i
		if q.IsPrototype() {
			c.graphs[q.ID] = buildGraph(q)
		}
	}
	return c, nil
}

// Research returns the underlying definition. Callers must not mutate it.
func (c *Compiled) Research() *model.Research {
	return c.research
}

// Len is the number of questions
func (c *Compiled) Len() int {
	return len(c.research.Questions)
}

// Question returns the question at position i
func (c *Compiled) Question(i int) *model.Question {
	if i < 0 || i >= len(c.research.Questions) {
		return nil
	}
	return &c.research.Questions[i]
}

// Position returns the index of questionID
func (c *Compiled) Position(questionID string) (int, bool) {
	i, ok := c.index[questionID]
	return i, ok
}

// Graph returns the screen graph of a prototype question, nil otherwise
func (c *Compiled) Graph(questionID string) *Graph {
	return c.graphs[questionID]
}

// Dangling lists dangling edges across all prototype questions
func (c *Compiled) Dangling() []DanglingEdge {
	var out []DanglingEdge
	for i := range c.research.Questions {
		if g := c.graphs[c.research.Questions[i].ID]; g != nil {
			out = append(out, g.dangling...)
		}
	}
	return out
}
