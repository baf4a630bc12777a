package ast

// Inspect traverses the tree rooted at node in depth-first order. If f
// returns false the children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}

	switch n := node.(type) {
	case *Source:
		for _, field := range n.Fields {
			Inspect(field, f)
		}
		for _, m := range n.Methods {
			Inspect(m, f)
		}
	case *Field:
		inspectExpr(n.Value, f)
	case *Method:
		inspectStmts(n.Statements, f)
	case *ExpressionStmt:
		inspectExpr(n.Expression, f)
	case *DeclarationStmt:
		inspectExpr(n.Value, f)
	case *AssignmentStmt:
		inspectExpr(n.Receiver, f)
		inspectExpr(n.Value, f)
	case *IfStmt:
		inspectExpr(n.Condition, f)
		inspectStmts(n.Then, f)
		inspectStmts(n.Else, f)
	case *ForStmt:
		inspectExpr(n.Value, f)
		inspectStmts(n.Statements, f)
	case *WhileStmt:
		inspectExpr(n.Condition, f)
		inspectStmts(n.Statements, f)
	case *ReturnStmt:
		inspectExpr(n.Value, f)
	case *LiteralExpr:
	case *GroupExpr:
		inspectExpr(n.Expression, f)
	case *BinaryExpr:
		inspectExpr(n.Left, f)
		inspectExpr(n.Right, f)
	case *AccessExpr:
		inspectExpr(n.Receiver, f)
	case *CallExpr:
		inspectExpr(n.Receiver, f)
		for _, arg := range n.Arguments {
			inspectExpr(arg, f)
		}
	}
}

// inspectExpr avoids wrapping a nil Expr in a non-nil Node
func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectStmts(stmts []Stmt, f func(Node) bool) {
	for _, s := range stmts {
		Inspect(s, f)
	}
}

// Unbound returns the first node whose resolution slot is still empty, or
// nil when every slot has been filled.
func Unbound(root Node) Node {
	var missing Node
	Inspect(root, func(n Node) bool {
		if missing != nil {
			return false
		}
		switch n := n.(type) {
		case *Field:
			if n.Variable() == nil {
				missing = n
			}
		case *Method:
			if n.Function() == nil {
				missing = n
			}
		case *DeclarationStmt:
			if n.Variable() == nil {
				missing = n
			}
		case *AccessExpr:
			if n.Variable() == nil || n.Type() == nil {
				missing = n
			}
		case *CallExpr:
			if n.Function() == nil || n.Type() == nil {
				missing = n
			}
		case Expr:
			if n.Type() == nil {
				missing = n
			}
		}
		return missing == nil
	})
	return missing
}
