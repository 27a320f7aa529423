package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DriverMongo is the name under which the MongoDB driver is selected.
const DriverMongo = "mongo"

const listCollectionsCommand = "listCollections()"

// MongoDriver exposes collections as tables and accepts
// [db.]collection.find({filter}) queries.
type MongoDriver struct {
	uri       string
	defaultDB string
	client    *mongo.Client
}

func NewMongoDriver(uri string) *MongoDriver {
	d := &MongoDriver{uri: uri}
	if u, err := url.Parse(uri); err == nil {
		d.defaultDB = strings.TrimPrefix(u.Path, "/")
	}
	return d
}

func (d *MongoDriver) Name() string {
	return DriverMongo
}

func (d *MongoDriver) Open(ctx context.Context) error {
	if d.client != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.uri))
	if err != nil {
		return &ConnectionError{Driver: DriverMongo, Target: maskDSN(d.uri), Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return &ConnectionError{Driver: DriverMongo, Target: maskDSN(d.uri), Err: err}
	}
	d.client = client
	return nil
}

func (d *MongoDriver) CatalogQuery() string {
	return listCollectionsCommand
}

func (d *MongoDriver) BrowseQuery(table string) string {
	return table + ".find({})"
}

func (d *MongoDriver) ExplainQuery(query string) (string, error) {
	return "", fmt.Errorf("explain: %w", ErrUnsupported)
}

func (d *MongoDriver) Query(ctx context.Context, query string) (RowStreamer, error) {
	if d.client == nil {
		return nil, ErrNotOpen
	}

	query = strings.TrimSpace(query)
	if query == listCollectionsCommand {
		return d.listCollections(ctx)
	}

	// Parse simple query syntax: db.collection.find({filter})
	// Valid Examples:
	// db.users.find({"age": {"$gt": 18}})
	// users.find({}) (uses the database from the URI)
	start := strings.Index(query, "(")
	end := strings.LastIndex(query, ")")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New("invalid query format: expected collection.find(filter)")
	}

	jsonFilter := strings.TrimSpace(query[start+1 : end])
	if jsonFilter == "" {
		jsonFilter = "{}"
	}

	var filter bson.M
	if err := json.Unmarshal([]byte(jsonFilter), &filter); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}

	segments := strings.Split(query[:start], ".")
	if segments[len(segments)-1] != "find" {
		return nil, errors.New("only 'find' command is supported")
	}

	dbName := d.defaultDB
	var collName string
	switch len(segments) {
	case 3:
		dbName, collName = segments[0], segments[1]
	case 2:
		collName = segments[0]
	default:
		return nil, errors.New("invalid query format: expected [db.]collection.find(...)")
	}
	if dbName == "" {
		return nil, errors.New("no database selected: add it to the URI or the query")
	}

	cursor, err := d.client.Database(dbName).Collection(collName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &MongoStreamer{cursor: cursor, ctx: ctx}, nil
}

// listCollections answers the catalog query with one row per collection.
func (d *MongoDriver) listCollections(ctx context.Context) (RowStreamer, error) {
	if d.defaultDB == "" {
		return nil, errors.New("no database selected: add it to the URI")
	}
	specs, err := d.client.Database(d.defaultDB).ListCollectionSpecifications(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(specs))
	for _, spec := range specs {
		kind := "table"
		if spec.Type == "view" {
			kind = "view"
		}
		rows = append(rows, []any{kind, spec.Name, spec.Name, "", ""})
	}
	return &sliceStreamer{
		columns: []string{"type", "name", "tbl_name", "rootpage", "sql"},
		rows:    rows,
		pos:     -1,
	}, nil
}

func (d *MongoDriver) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Disconnect(context.Background())
	d.client = nil
	if err != nil {
		return &ConnectionError{Driver: DriverMongo, Target: maskDSN(d.uri), Err: err}
	}
	return nil
}

// MongoStreamer implements RowStreamer for MongoDB functionality
type MongoStreamer struct {
	cursor *mongo.Cursor
	ctx    context.Context
	row    bson.M
	err    error
}

func (s *MongoStreamer) Columns() ([]string, error) {
	return []string{"document"}, nil
}

func (s *MongoStreamer) Next() bool {
	if s.cursor.Next(s.ctx) {
		s.row = nil
		if err := s.cursor.Decode(&s.row); err != nil {
			s.err = err
			return false
		}
		return true
	}
	s.err = s.cursor.Err()
	return false
}

func (s *MongoStreamer) Scan(dest ...interface{}) error {
	if len(dest) != 1 {
		return errors.New("expected exactly 1 destination for document")
	}

	data, err := json.Marshal(s.row)
	if err != nil {
		return err
	}

	switch v := dest[0].(type) {
	case *string:
		*v = string(data)
	case *interface{}:
		*v = string(data)
	default:
		return errors.New("destination must be *string or *interface{}")
	}
	return nil
}

func (s *MongoStreamer) Err() error {
	return s.err
}

func (s *MongoStreamer) Close() error {
	return s.cursor.Close(s.ctx)
}

// sliceStreamer serves precomputed rows.
type sliceStreamer struct {
	columns []string
	rows    [][]any
	pos     int
}

func (s *sliceStreamer) Columns() ([]string, error) { return s.columns, nil }

func (s *sliceStreamer) Next() bool {
	s.pos++
	return s.pos < len(s.rows)
}

func (s *sliceStreamer) Scan(dest ...interface{}) error {
	row := s.rows[s.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		p, ok := dest[i].(*interface{})
		if !ok {
			return errors.New("destination must be *interface{}")
		}
		*p = v
	}
	return nil
}

func (s *sliceStreamer) Err() error   { return nil }
func (s *sliceStreamer) Close() error { return nil }
