package testutil

import (
	"database/sql"
	"fmt"

	"github.com/jaevor/go-nanoid"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/multierr"
)

const postgresExpireSeconds = 120

const (
	containerNameCharacters   = "abcdefghijklmnopqrstuvwxyz"
	containerNameNanoIDLength = 16
)

// TestWithPostgres は使い捨てのPostgreSQLコンテナを起動し、接続できるURLを返す
func TestWithPostgres(pool *dockertest.Pool) (_ string, _ Cleanup, err error) {
	pool, err = initDockertest(pool)
	if err != nil {
		return "", nil, err
	}

	// ランダムなコンテナ名を生成する
	generateID, err := nanoid.CustomASCII(containerNameCharacters, containerNameNanoIDLength)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate container name: %w", err)
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       fmt.Sprintf("lovebook-postgres_%s", generateID()),
			Repository: "postgres",
			Tag:        "16-alpine",
			Env: []string{
				"POSTGRES_USER=app",
				"POSTGRES_PASSWORD=password",
				"POSTGRES_DB=lovebook",
			},
		},
		func(config *docker.HostConfig) {
			// コンテナが終了したら削除する
			config.AutoRemove = true
			// コンテナの起動に失敗してもリトライしない
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return "", nil, fmt.Errorf("could not start postgres: %w", err)
	}

	cleanup := func() error {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			return fmt.Errorf("could not purge postgres: %w", purgeErr)
		}
		return nil
	}
	defer func() {
		// この関数の中でエラーが発生したらcleanupを呼ぶ
		if err != nil {
			err = multierr.Append(err, cleanup())
		}
	}()

	// コンテナを停止するまでの時間を設定
	if err = resource.Expire(postgresExpireSeconds); err != nil {
		return "", nil, fmt.Errorf("could not set expiration time for postgres: %w", err)
	}

	databaseURL := fmt.Sprintf("postgres://app:password@%s/lovebook?sslmode=disable", resource.GetHostPort("5432/tcp"))

	// PostgreSQLの立ち上がりを待つ
	err = pool.Retry(func() error {
		db, retryErr := sql.Open("postgres", databaseURL)
		if retryErr != nil {
			return retryErr
		}
		return multierr.Append(db.Ping(), db.Close())
	})
	if err != nil {
		return "", nil, fmt.Errorf("could not connect to postgres: %w", err)
	}

	return databaseURL, cleanup, nil
}
