// mongo документная реализация storage.Store.
// Уникальный индекс по title даёт ту же семантику upsert, что и SQL-бэкенды,
// а числовые id выдаются счётчиком в отдельной коллекции.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	articlesCollection = "articles"
	countersCollection = "counters"
	stateCollection    = "ingestion_state"
	defaultDBName      = "news"
)

// Mongo адаптер хранилища статей поверх MongoDB.
type Mongo struct {
	client   *mongodriver.Client
	articles *mongodriver.Collection
	counters *mongodriver.Collection
	state    *mongodriver.Collection
}

type articleDoc struct {
	ID          int64      `bson:"_id"`
	Title       string     `bson:"title"`
	Content     *string    `bson:"content"`
	Category    string     `bson:"category"`
	Source      string     `bson:"source"`
	Author      *string    `bson:"author"`
	Description *string    `bson:"description"`
	Link        *string    `bson:"link"`
	Image       *string    `bson:"image"`
	PublishedAt *time.Time `bson:"published_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
// Имя базы берётся из dbName, затем из пути URI, иначе используется "news".
func New(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	db := cli.Database(dbName)

	m := &Mongo{
		client:   cli,
		articles: db.Collection(articlesCollection),
		counters: db.Collection(countersCollection),
		state:    db.Collection(stateCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetName("uniq_title").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("category"),
		},
		{
			Keys:    bson.D{{Key: "source", Value: 1}},
			Options: options.Index().SetName("source"),
		},
		{
			Keys:    bson.D{{Key: "published_at", Value: 1}},
			Options: options.Index().SetName("published_at"),
		},
	}

	if _, err := m.articles.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Upsert сначала пытается обновить документ по title. Если его нет, выделяет id
// и вставляет новый; при гонке на вставке (duplicate key) повторяет обновление.
func (m *Mongo) Upsert(ctx context.Context, a models.Article) (int64, error) {
	const op = "storage.mongo.Upsert"

	id, err := m.update(ctx, a)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, mongodriver.ErrNoDocuments) {
		return 0, storage.Wrap(op, err)
	}

	id, err = m.nextID(ctx)
	if err != nil {
		return 0, storage.Wrap(op, err)
	}

	doc := toDoc(a)
	doc.ID = id
	if _, err := m.articles.InsertOne(ctx, doc); err != nil {
		if !mongodriver.IsDuplicateKeyError(err) {
			return 0, storage.Wrap(op, err)
		}
		id, err = m.update(ctx, a)
		if err != nil {
			return 0, storage.Wrap(op, err)
		}
	}
	return id, nil
}

func (m *Mongo) update(ctx context.Context, a models.Article) (int64, error) {
	doc := toDoc(a)
	set := bson.M{
		"content":      doc.Content,
		"category":     doc.Category,
		"source":       doc.Source,
		"author":       doc.Author,
		"description":  doc.Description,
		"link":         doc.Link,
		"image":        doc.Image,
		"published_at": doc.PublishedAt,
		"updated_at":   doc.UpdatedAt,
	}

	var res struct {
		ID int64 `bson:"_id"`
	}
	err := m.articles.FindOneAndUpdate(ctx,
		bson.M{"title": a.Title},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetProjection(bson.M{"_id": 1}),
	).Decode(&res)
	if err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (m *Mongo) nextID(ctx context.Context) (int64, error) {
	var res struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": articlesCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&res)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return res.Seq, nil
}

func (m *Mongo) FindArticles(ctx context.Context, c storage.Criteria) ([]models.Article, int, error) {
	const op = "storage.mongo.FindArticles"

	filter := buildFilter(c)

	total, err := m.articles.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storage.Wrap(op, fmt.Errorf("count: %w", err))
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(c.Offset)).
		SetLimit(int64(c.Limit))

	cur, err := m.articles.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, storage.Wrap(op, err)
	}

	var docs []articleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, storage.Wrap(op, err)
	}

	items := make([]models.Article, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toModel())
	}
	return items, int(total), nil
}

func (m *Mongo) ArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	const op = "storage.mongo.ArticleByID"

	var doc articleDoc
	err := m.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, storage.Wrap(op, storage.ErrNotFound)
		}
		return nil, storage.Wrap(op, err)
	}
	a := doc.toModel()
	return &a, nil
}

func (m *Mongo) DistinctCategories(ctx context.Context) ([]string, error) {
	return m.distinct(ctx, "storage.mongo.DistinctCategories", "category")
}

func (m *Mongo) DistinctAuthors(ctx context.Context) ([]string, error) {
	return m.distinct(ctx, "storage.mongo.DistinctAuthors", "author")
}

func (m *Mongo) distinct(ctx context.Context, op, field string) ([]string, error) {
	raw, err := m.articles.Distinct(ctx, field, bson.M{field: bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return nil, storage.Wrap(op, err)
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	sort.Strings(values)
	return values, nil
}

func (m *Mongo) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	const op = "storage.mongo.LastRun"

	var doc struct {
		LastRunAt time.Time `bson:"last_run_at"`
	}
	err := m.state.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storage.Wrap(op, err)
	}
	return doc.LastRunAt.UTC(), true, nil
}

func (m *Mongo) SetLastRun(ctx context.Context, name string, at time.Time) error {
	const op = "storage.mongo.SetLastRun"

	_, err := m.state.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"last_run_at": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	return storage.Wrap(op, err)
}

// buildFilter переводит критерии в bson-фильтр. Ключевое слово ищется как
// подстрока без учёта регистра, спецсимволы regexp экранируются.
func buildFilter(c storage.Criteria) bson.M {
	filter := bson.M{}

	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(kw), "$options": "i"}
	}
	if len(c.Categories) > 0 {
		filter["category"] = bson.M{"$in": c.Categories}
	}
	if len(c.Sources) > 0 {
		filter["source"] = bson.M{"$in": c.Sources}
	}
	if len(c.Authors) > 0 {
		filter["author"] = bson.M{"$in": c.Authors}
	}
	if r := c.Published; r != nil {
		filter["published_at"] = bson.M{"$gte": r.From.UTC(), "$lte": r.To.UTC()}
	}
	return filter
}

func toDoc(a models.Article) articleDoc {
	doc := articleDoc{
		ID:          a.ID,
		Title:       a.Title,
		Content:     a.Content,
		Category:    a.Category,
		Source:      string(a.Source),
		Author:      a.Author,
		Description: a.Description,
		Link:        a.Link,
		Image:       a.Image,
		UpdatedAt:   time.Now().UTC(),
	}
	if a.PublishedAt != nil {
		t := a.PublishedAt.UTC()
		doc.PublishedAt = &t
	}
	return doc
}

func (d articleDoc) toModel() models.Article {
	a := models.Article{
		ID:          d.ID,
		Title:       d.Title,
		Content:     d.Content,
		Category:    d.Category,
		Source:      models.Source(d.Source),
		Author:      d.Author,
		Description: d.Description,
		Link:        d.Link,
		Image:       d.Image,
	}
	if d.PublishedAt != nil {
		t := d.PublishedAt.UTC()
		a.PublishedAt = &t
	}
	return a
}

// databaseFromURI извлекает имя базы из пути mongodb URI.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

var _ storage.Store = (*Mongo)(nil)
