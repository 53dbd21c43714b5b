package kiri

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/types"
)

func intSchema(names ...string) *schema.Schema {
	cols := make([]*column.Column, 0, len(names))
	for _, name := range names {
		cols = append(cols, column.NewColumn(name, types.Integer))
	}
	return schema.NewSchema(cols)
}

// seedShop loads a users/orders pair: 50 users, 200 orders spread evenly
// across them, an index on users.id and fresh statistics for both.
func seedShop(t *testing.T, db *KiriDB) (usersOID uint32, ordersOID uint32) {
	t.Helper()
	users := db.CreateTable("users", intSchema("id", "team_id"))
	orders := db.CreateTable("orders", intSchema("user_id", "amount"))

	txn := db.Begin()
	for i := 0; i < 50; i++ {
		_, err := db.InsertRow("users",
			[]types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 7))}, txn)
		require.NoError(t, err)
	}
	for i := 0; i < 200; i++ {
		_, err := db.InsertRow("orders",
			[]types.Value{types.NewInteger(int32(i % 50)), types.NewInteger(int32(i * 10))}, txn)
		require.NoError(t, err)
	}
	db.Commit(txn)

	_, err := db.CreateIndex("users", "users_id_idx", "id")
	require.NoError(t, err)
	require.NoError(t, db.RefreshStatistics("users"))
	require.NoError(t, db.RefreshStatistics("orders"))
	return users.OID(), orders.OID()
}

func drain(t *testing.T, rs *ResultSet) [][]types.Value {
	t.Helper()
	defer rs.Close()
	var rows [][]types.Value
	for {
		values, done, err := rs.Next()
		require.NoError(t, err)
		if done {
			return rows
		}
		rows = append(rows, values)
	}
}

func TestJoinQueryEndToEnd(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	usersOID, ordersOID := seedShop(t, db)

	query := planner.NewQuery([]uint32{usersOID, ordersOID})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: usersOID, ColIdx: 0},
		Right: planner.ColumnRef{RelOID: ordersOID, ColIdx: 0},
	}}

	txn := db.Begin()
	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	require.Len(t, rows, 200)
	idCol := rs.Schema().GetColIndex("id")
	userIdCol := rs.Schema().GetColIndex("user_id")
	require.GreaterOrEqual(t, idCol, int32(0))
	require.GreaterOrEqual(t, userIdCol, int32(0))
	for _, row := range rows {
		require.True(t, row[idCol].CompareEquals(row[userIdCol]))
	}
}

func TestSelectiveFilterIsAnsweredByTheIndex(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()

	events := db.CreateTable("events", intSchema("id", "kind"))
	txn0 := db.Begin()
	for i := 0; i < 5000; i++ {
		_, err := db.InsertRow("events",
			[]types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 11))}, txn0)
		require.NoError(t, err)
	}
	db.Commit(txn0)
	_, err := db.CreateIndex("events", "events_id_idx", "id")
	require.NoError(t, err)
	require.NoError(t, db.RefreshStatistics("events"))

	query := planner.NewQuery([]uint32{events.OID()})
	query.Predicates = []*planner.Predicate{{
		Column: planner.ColumnRef{RelOID: events.OID(), ColIdx: 0},
		Op:     planner.OpEqual,
		Value:  types.NewInteger(7),
	}}

	txn := db.Begin()
	out, err := db.ExplainQuery(query, false, txn)
	require.NoError(t, err)
	db.Commit(txn)
	require.Contains(t, out, "Index Scan")

	txn2 := db.Begin()
	rs, err := db.ExecuteQuery(query, txn2)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn2)
	require.Len(t, rows, 1)
	require.EqualValues(t, 7, rows[0][0].ToInteger())
}

func TestMergeJoinOverUnsortedHeapsFindsEveryMatch(t *testing.T) {
	cfg := common.NewConfig()
	cfg.EnableHashJoin = false
	cfg.EnableNestLoop = false
	db := NewKiriDB(cfg)
	defer db.ShutDown()

	// one heap ascends, the other descends; neither scan delivers key order
	a := db.CreateTable("a", intSchema("id", "val"))
	b := db.CreateTable("b", intSchema("id", "val"))
	txn0 := db.Begin()
	for i := 0; i < 50; i++ {
		_, err := db.InsertRow("a",
			[]types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i))}, txn0)
		require.NoError(t, err)
		_, err = db.InsertRow("b",
			[]types.Value{types.NewInteger(int32(49 - i)), types.NewInteger(int32(i))}, txn0)
		require.NoError(t, err)
	}
	db.Commit(txn0)
	require.NoError(t, db.RefreshStatistics("a"))
	require.NoError(t, db.RefreshStatistics("b"))

	query := planner.NewQuery([]uint32{a.OID(), b.OID()})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: a.OID(), ColIdx: 0},
		Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0},
	}}

	txn := db.Begin()
	out, err := db.ExplainQuery(query, false, txn)
	require.NoError(t, err)
	require.Contains(t, out, "Merge Join")
	require.Contains(t, out, "Sort")

	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	require.Len(t, rows, 50)
	for _, row := range rows {
		require.True(t, row[0].CompareEquals(row[2]))
	}
}

func TestMergeJoinHonorsEveryEqualityCondition(t *testing.T) {
	cfg := common.NewConfig()
	cfg.EnableHashJoin = false
	cfg.EnableNestLoop = false
	db := NewKiriDB(cfg)
	defer db.ShutDown()

	a := db.CreateTable("a", intSchema("id", "flag"))
	b := db.CreateTable("b", intSchema("id", "flag"))
	txn0 := db.Begin()
	for i := 0; i < 50; i++ {
		_, err := db.InsertRow("a",
			[]types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 2))}, txn0)
		require.NoError(t, err)
		_, err = db.InsertRow("b",
			[]types.Value{types.NewInteger(int32(i)), types.NewInteger(0)}, txn0)
		require.NoError(t, err)
	}
	db.Commit(txn0)
	require.NoError(t, db.RefreshStatistics("a"))
	require.NoError(t, db.RefreshStatistics("b"))

	query := planner.NewQuery([]uint32{a.OID(), b.OID()})
	query.JoinConditions = []*planner.JoinCondition{
		{Left: planner.ColumnRef{RelOID: a.OID(), ColIdx: 0}, Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0}},
		{Left: planner.ColumnRef{RelOID: a.OID(), ColIdx: 1}, Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 1}},
	}

	txn := db.Begin()
	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	// ids pair one to one, but only even ids also agree on flag
	require.Len(t, rows, 25)
	for _, row := range rows {
		require.EqualValues(t, 0, row[0].ToInteger()%2)
	}
}

func TestScalarAggregateOverEmptyTable(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()

	empty := db.CreateTable("empty", intSchema("id", "val"))
	query := planner.NewQuery([]uint32{empty.OID()})
	query.Aggregates = []planner.AggregateExpr{
		{Kind: planner.AggCount, Column: planner.ColumnRef{RelOID: empty.OID(), ColIdx: 0}},
	}

	txn := db.Begin()
	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	// COUNT over no rows is one row saying zero, not zero rows
	require.Len(t, rows, 1)
	require.EqualValues(t, 0, rows[0][0].ToInteger())
}

func TestExplainAnalyzeReportsActuals(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	usersOID, _ := seedShop(t, db)

	query := planner.NewQuery([]uint32{usersOID})

	txn := db.Begin()
	plain, err := db.ExplainQuery(query, false, txn)
	require.NoError(t, err)
	analyzed, err := db.ExplainQuery(query, true, txn)
	require.NoError(t, err)
	db.Commit(txn)

	require.NotContains(t, plain, "actual")
	require.Contains(t, analyzed, "actual rows=50")
	require.Contains(t, analyzed, "cost=")
}

func TestAggregateQueryEndToEnd(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	_, ordersOID := seedShop(t, db)

	query := planner.NewQuery([]uint32{ordersOID})
	query.GroupBy = []planner.ColumnRef{{RelOID: ordersOID, ColIdx: 0}}
	query.Aggregates = []planner.AggregateExpr{
		{Kind: planner.AggCount, Column: planner.ColumnRef{RelOID: ordersOID, ColIdx: 1}},
	}

	txn := db.Begin()
	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	// 200 orders over 50 users, four each
	require.Len(t, rows, 50)
	for _, row := range rows {
		require.EqualValues(t, 4, row[1].ToInteger())
	}
}

func TestDeleteRowsAffectsOnlyLaterSnapshots(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	usersOID, _ := seedShop(t, db)

	query := planner.NewQuery([]uint32{usersOID})

	before := db.Begin()

	deleter := db.Begin()
	deleted, err := db.DeleteRows("users", "id", planner.OpLessThan, types.NewInteger(10), deleter)
	require.NoError(t, err)
	require.EqualValues(t, 10, deleted)
	db.Commit(deleter)

	// the snapshot taken before the delete still sees every row
	rs, err := db.ExecuteQuery(query, before)
	require.NoError(t, err)
	require.Len(t, drain(t, rs), 50)
	db.Commit(before)

	after := db.Begin()
	rs, err = db.ExecuteQuery(query, after)
	require.NoError(t, err)
	require.Len(t, drain(t, rs), 40)
	db.Commit(after)
}

func TestLimitedOrderedQuery(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	usersOID, _ := seedShop(t, db)

	query := planner.NewQuery([]uint32{usersOID})
	query.OrderBy = []planner.OrderByItem{{Column: planner.ColumnRef{RelOID: usersOID, ColIdx: 0}}}
	query.Limit = 5

	txn := db.Begin()
	rs, err := db.ExecuteQuery(query, txn)
	require.NoError(t, err)
	rows := drain(t, rs)
	db.Commit(txn)

	require.Len(t, rows, 5)
	for i, row := range rows {
		require.EqualValues(t, i, row[0].ToInteger())
	}
}

func TestExplainOutputIsTreeShaped(t *testing.T) {
	db := NewKiriDB(common.NewConfig())
	defer db.ShutDown()
	usersOID, ordersOID := seedShop(t, db)

	query := planner.NewQuery([]uint32{usersOID, ordersOID})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: usersOID, ColIdx: 0},
		Right: planner.ColumnRef{RelOID: ordersOID, ColIdx: 0},
	}}

	txn := db.Begin()
	out, err := db.ExplainQuery(query, false, txn)
	require.NoError(t, err)
	db.Commit(txn)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// a join plan has at least the join node and its two inputs
	require.GreaterOrEqual(t, len(lines), 3)
	require.Contains(t, lines[1], "-> ")
}
