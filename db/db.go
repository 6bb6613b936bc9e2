// Package db persists publishers, interests and posts in SQLite and replays
// them into the tag index at startup. The feed core itself never touches the
// database, it only sees this package through the index.Directory interface
// and the replay hook.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"pressfeed/models"
)

// DB handles all database operations with a shared connection pool
type DB struct {
	db *sql.DB
}

func NewDB(database string) (*DB, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Publisher operations

func (db *DB) CreatePublisher(ctx context.Context, publisher models.Publisher) (int64, error) {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	query, args := ib.InsertInto("publishers").
		Cols("name", "email").
		Values(publisher.Name, publisher.Email).
		Build()

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert error: %w", err)
	}
	return res.LastInsertId()
}

func (db *DB) ListPublishers(ctx context.Context) ([]models.Publisher, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id", "name", "email").From("publishers").OrderBy("id").Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var publishers []models.Publisher
	for rows.Next() {
		var publisher models.Publisher
		if err := rows.Scan(&publisher.Id, &publisher.Name, &publisher.Email); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		publishers = append(publishers, publisher)
	}
	return publishers, rows.Err()
}

// Interest operations

func (db *DB) CreateInterest(ctx context.Context, interest models.Interest) (int64, error) {
	if interest.Weight <= 0 {
		interest.Weight = 1.0
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	query, args := ib.InsertInto("interests").
		Cols("name", "description", "weight").
		Values(interest.Name, interest.Description, interest.Weight).
		Build()

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert error: %w", err)
	}
	return res.LastInsertId()
}

func (db *DB) ListInterests(ctx context.Context) ([]models.Interest, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id", "name", "description", "weight").From("interests").OrderBy("name").Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var interests []models.Interest
	for rows.Next() {
		var interest models.Interest
		if err := rows.Scan(&interest.Id, &interest.Name, &interest.Description, &interest.Weight); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		interests = append(interests, interest)
	}
	return interests, rows.Err()
}

// Directory implementation consumed by the tag index for reference validation

func (db *DB) HasPublisher(id int64) bool {
	var count int
	if err := db.db.QueryRow("SELECT count(*) FROM publishers WHERE id = ?", id).Scan(&count); err != nil {
		log.WithFields(log.Fields{"publisher": id, "error": err}).Error("Publisher lookup failed")
		return false
	}
	return count > 0
}

func (db *DB) HasInterest(name string) bool {
	var count int
	if err := db.db.QueryRow("SELECT count(*) FROM interests WHERE name = ?", name).Scan(&count); err != nil {
		log.WithFields(log.Fields{"interest": name, "error": err}).Error("Interest lookup failed")
		return false
	}
	return count > 0
}

// Post operations

func (db *DB) CreatePost(ctx context.Context, post models.Post) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tags := lo.Uniq(post.Interests)
	if len(tags) == 0 {
		return 0, models.NewValidationError("interests", "")
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	if !db.HasPublisher(post.PublisherId) {
		return 0, models.NewValidationError("publisher", fmt.Sprintf("%d", post.PublisherId))
	}

	interestIds, err := db.resolveInterests(ctx, tx, tags)
	if err != nil {
		return 0, err
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	query, args := ib.InsertInto("posts").
		Cols("publisher_id", "title", "link", "created_at").
		Values(post.PublisherId, post.Title, post.Link, post.CreatedAt).
		Build()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting inserted id: %w", err)
	}

	tagsInsert := sqlbuilder.SQLite.NewInsertBuilder()
	tagsInsert.InsertInto("post_interests").Cols("post_id", "interest_id")
	for _, interestId := range interestIds {
		tagsInsert.Values(id, interestId)
	}
	query, args = tagsInsert.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("error inserting post interests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"post":       id,
		"publisher":  post.PublisherId,
		"interests":  tags,
		"created_at": time.Unix(post.CreatedAt, 0).Format(time.RFC3339),
	}).Info("Created post")

	return id, nil
}

// resolveInterests maps interest names to their ids, rejecting dangling
// references.
func (db *DB) resolveInterests(ctx context.Context, tx *sql.Tx, names []string) ([]int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id", "name").
		From("interests").
		Where(sb.In("name", lo.ToAnySlice(names)...)).
		Build()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	found := make(map[string]int64, len(names))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		found[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := found[name]
		if !ok {
			return nil, models.NewValidationError("interest", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (db *DB) GetPost(ctx context.Context, postId int64) (models.Post, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id", "publisher_id", "title", "link", "created_at", "likes").
		From("posts").
		Where(sb.Equal("id", postId)).
		Build()

	var post models.Post
	var link sql.NullString
	err := db.db.QueryRowContext(ctx, query, args...).
		Scan(&post.Id, &post.PublisherId, &post.Title, &link, &post.CreatedAt, &post.Likes)
	if err == sql.ErrNoRows {
		return models.Post{}, models.ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("query error: %w", err)
	}
	post.Link = link.String

	tags, err := db.postInterests(ctx, postId)
	if err != nil {
		return models.Post{}, err
	}
	post.Interests = tags

	return post, nil
}

func (db *DB) postInterests(ctx context.Context, postId int64) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("interests.name").
		From("post_interests").
		Join("interests", "interests.id = post_interests.interest_id").
		Where(sb.Equal("post_interests.post_id", postId)).
		OrderBy("interests.name").
		Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (db *DB) DeletePost(ctx context.Context, postId int64) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := db.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", postId)
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	log.WithFields(log.Fields{"post": postId}).Info("Deleted post")
	return nil
}

func (db *DB) LikePost(ctx context.Context, postId int64, delta int64) error {
	if delta <= 0 {
		return models.NewValidationError("delta", fmt.Sprintf("%d", delta))
	}

	res, err := db.db.ExecContext(ctx, "UPDATE posts SET likes = likes + ? WHERE id = ?", delta, postId)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReplayPosts streams every stored post in insertion order, oldest first.
// Used to rehydrate the tag index at startup.
func (db *DB) ReplayPosts(ctx context.Context, fn func(models.Post) error) error {
	tagsByPost, err := db.allPostInterests(ctx)
	if err != nil {
		return err
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id", "publisher_id", "title", "link", "created_at", "likes").
		From("posts").
		OrderBy("id").
		Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var post models.Post
		var link sql.NullString
		if err := rows.Scan(&post.Id, &post.PublisherId, &post.Title, &link, &post.CreatedAt, &post.Likes); err != nil {
			return fmt.Errorf("scan error: %w", err)
		}
		post.Link = link.String
		post.Interests = tagsByPost[post.Id]
		if err := fn(post); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.WithFields(log.Fields{"posts": count}).Info("Replayed posts from database")
	return nil
}

func (db *DB) allPostInterests(ctx context.Context) (map[int64][]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("post_interests.post_id", "interests.name").
		From("post_interests").
		Join("interests", "interests.id = post_interests.interest_id").
		Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	tagsByPost := make(map[int64][]string)
	for rows.Next() {
		var postId int64
		var tag string
		if err := rows.Scan(&postId, &tag); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		tagsByPost[postId] = append(tagsByPost[postId], tag)
	}
	return tagsByPost, rows.Err()
}
