// Package queryir defines the node model of a typed SQL query.
//
// Every piece of a query is a node identified by a Tag: a (class, variant,
// type) triple such as (operator, binary, =) or (clause, select, select).
// Nodes are immutable values; composing them always produces new nodes.
//
// SEALED INTERFACES:
//
// Node, Expression and Query are sealed interfaces using the marker method
// pattern. Only types in this package implement them, so backends can
// switch over them exhaustively:
//
//	switch n := node.(type) {
//	case ColumnRef:
//	    // "t"."col"
//	case Comparator:
//	    // left = right
//	...
//	default:
//	    // a node kind was added without a backend case
//	}
//
// There is no registry of node kinds. A backend that meets a node it has
// no case for reports sqlerr.CodeUnsupportedNode, which is always a defect.
//
// EXPRESSION METADATA:
//
// Every Expression reports its result domain, whether it aggregates, the
// base-table columns it reads outside any aggregate (used to validate
// GROUP BY), and the output names it gets when selected without an alias.
//
// The compiler for these nodes lives in package querysql, the fluent
// builder in package expr, and clause accumulation in package query.
package queryir
