package queryir

// Query is a complete statement.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	Node
	queryNode()
}

// JoinKind selects the join flavour.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
)

// Join adds an entity to a query.
type Join struct {
	Kind   JoinKind
	Entity Table
	On     Expression
}

func (Join) node() {}

// Tag implements Node.
func (j Join) Tag() Tag { return Tag{ClassClause, "join", string(j.Kind)} }

// SelectItem is one projected expression. An empty Alias means the first
// inferred alias of Expr is used as the output name.
type SelectItem struct {
	Expr  Expression
	Alias string
}

func (SelectItem) node() {}

// Tag implements Node.
func (s SelectItem) Tag() Tag { return Tag{ClassClause, "select_item", "select_item"} }

// OutputName is the column name the item produces in a result row.
func (s SelectItem) OutputName() string {
	if s.Alias != "" {
		return s.Alias
	}
	if names := s.Expr.InferredAliases(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// OrderItem sorts by an expression, or by the output alias of an explicit
// select item when Alias is set.
type OrderItem struct {
	Expr  Expression
	Alias string
	Desc  bool
}

func (OrderItem) node() {}

// Tag implements Node.
func (o OrderItem) Tag() Tag { return Tag{ClassClause, "order_by", "order_item"} }

// Limit bounds the number of result rows.
type Limit struct {
	Count  int64
	Offset int64
}

func (Limit) node() {}

// Tag implements Node.
func (l Limit) Tag() Tag { return Tag{ClassClause, "limit", "limit"} }

// Select is a SELECT statement.
//
// Semantics:
//
//	SELECT <items> FROM <from> <joins> WHERE <where>
//	GROUP BY <group_by> ORDER BY <order_by> LIMIT <limit>
//
// When Explicit is false, Items holds one WholeRow projection per entity.
type Select struct {
	From     Table
	Joins    []Join
	Where    Expression
	GroupBy  []Expression
	OrderBy  []OrderItem
	Limit    *Limit
	Items    []SelectItem
	Explicit bool
}

func (Select) node()      {}
func (Select) queryNode() {}

// Tag implements Node.
func (s Select) Tag() Tag { return Tag{ClassClause, "select", "select"} }

// Entities returns the FROM entity followed by joined entities.
func (s *Select) Entities() []Table {
	out := make([]Table, 0, 1+len(s.Joins))
	out = append(out, s.From)
	for _, j := range s.Joins {
		out = append(out, j.Entity)
	}
	return out
}

// Entity finds an entity by alias.
func (s *Select) Entity(alias string) (Table, bool) {
	for _, e := range s.Entities() {
		if e.Ref() == alias {
			return e, true
		}
	}
	return Table{}, false
}

// IsLeftJoined reports whether the entity under alias was added by a LEFT
// JOIN, i.e. may be absent from a result row.
func (s *Select) IsLeftJoined(alias string) bool {
	for _, j := range s.Joins {
		if j.Entity.Ref() == alias {
			return j.Kind == JoinLeft
		}
	}
	return false
}

// AllColumns returns the default projection: every entity as a whole row.
func (s *Select) AllColumns() []SelectItem {
	entities := s.Entities()
	items := make([]SelectItem, len(entities))
	for i, e := range entities {
		items[i] = SelectItem{Expr: WholeRow{Entity: e, Optional: s.IsLeftJoined(e.Ref())}}
	}
	return items
}

// Projection returns Items, or the default projection when Items is empty.
func (s *Select) Projection() []SelectItem {
	if len(s.Items) == 0 {
		return s.AllColumns()
	}
	return s.Items
}

// WholeRowKeys maps the alias of every entity projected as a whole row to
// the output name its object appears under in a result row.
func (s *Select) WholeRowKeys() map[string]string {
	out := map[string]string{}
	for _, item := range s.Projection() {
		if w, ok := item.Expr.(WholeRow); ok {
			out[w.Entity.Ref()] = item.OutputName()
		}
	}
	return out
}
