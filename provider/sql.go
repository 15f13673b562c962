// Package provider 实现 core.DataProvider 契约：SQL 关系库与内存静态数据两种来源。
package provider

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/flixmate/recommender/core"
)

// SQLProvider 从关系库加载三张表。可选列用 COALESCE 兜底为约定默认值：
// 空类型串、空简介、零评分/零热度、语言 "en"。
// 电影表加载失败是提供方级错误（引擎据此进入 Degraded）；
// 交互表与偏好表失败只降级为空表。
type SQLProvider struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLProvider(db *sql.DB, logger *zap.Logger) *SQLProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLProvider{db: db, logger: logger}
}

// OpenPostgres 用 postgres 驱动打开连接并建 Provider。
func OpenPostgres(dsn string, logger *zap.Logger) (*SQLProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("provider: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("provider: ping postgres: %w", err)
	}
	return NewSQLProvider(db, logger), nil
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (p *SQLProvider) LoadTables(ctx context.Context) (*core.Tables, error) {
	movies, err := p.loadMovies(ctx)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleProvider, core.ErrorCodeUnavailable,
			fmt.Sprintf("provider: load movies: %v", err))
	}

	tables := &core.Tables{Movies: movies}

	interactions, err := p.loadInteractions(ctx)
	if err != nil {
		p.logger.Warn("failed to load interactions, continuing with empty table", zap.Error(err))
	} else {
		tables.Interactions = interactions
	}

	prefs, err := p.loadPreferences(ctx)
	if err != nil {
		p.logger.Warn("failed to load genre preferences, continuing with empty table", zap.Error(err))
	} else {
		tables.Preferences = prefs
	}

	p.logger.Info("tables loaded",
		zap.Int("movies", len(tables.Movies)),
		zap.Int("interactions", len(tables.Interactions)),
		zap.Int("preferences", len(tables.Preferences)))
	return tables, nil
}

func (p *SQLProvider) loadMovies(ctx context.Context) ([]core.Movie, error) {
	query, args, err := psql.
		Select(
			"m.id",
			"COALESCE(m.title, 'Unknown') AS title",
			"COALESCE(m.overview, '') AS overview",
			"COALESCE(m.rating, 0) AS rating",
			"COALESCE(m.popularity, 0) AS popularity",
			"COALESCE(m.original_language, 'en') AS original_language",
			"COALESCE(STRING_AGG(g.name, '|'), '') AS genres",
		).
		From("movies m").
		LeftJoin("movie_genres mg ON m.id = mg.movie_id").
		LeftJoin("genres g ON mg.genre_id = g.id").
		GroupBy("m.id", "m.title", "m.overview", "m.rating", "m.popularity", "m.original_language").
		OrderBy("m.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []core.Movie
	for rows.Next() {
		var m core.Movie
		var genres string
		if err := rows.Scan(&m.ID, &m.Title, &m.Overview, &m.Rating, &m.Popularity, &m.Language, &genres); err != nil {
			return nil, err
		}
		m.Genres = core.ParseGenres(genres)
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (p *SQLProvider) loadInteractions(ctx context.Context) ([]core.Interaction, error) {
	query, args, err := psql.
		Select(
			"user_id",
			"movie_id",
			"CASE WHEN feedback = true THEN 1 ELSE 0 END AS label",
		).
		From("feedbacks").
		Where("user_id IS NOT NULL AND movie_id IS NOT NULL").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []core.Interaction
	for rows.Next() {
		var in core.Interaction
		if err := rows.Scan(&in.UserID, &in.MovieID, &in.Label); err != nil {
			return nil, err
		}
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

func (p *SQLProvider) loadPreferences(ctx context.Context) ([]core.GenrePreference, error) {
	query, args, err := psql.
		Select(
			"ug.user_id",
			"COALESCE(STRING_AGG(g.name, '|'), '') AS preferred_genres",
		).
		From("user_genres ug").
		Join("genres g ON ug.genre_id = g.id").
		Where("ug.user_id IS NOT NULL").
		GroupBy("ug.user_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []core.GenrePreference
	for rows.Next() {
		var userID int
		var genres string
		if err := rows.Scan(&userID, &genres); err != nil {
			return nil, err
		}
		prefs = append(prefs, core.GenrePreference{UserID: userID, Genres: core.ParseGenres(genres)})
	}
	return prefs, rows.Err()
}

var _ core.DataProvider = (*SQLProvider)(nil)
