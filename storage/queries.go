package storage

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"genix/util"

	"github.com/sirupsen/logrus"
)

//go:embed queries/**/*.sql
var queriesFS embed.FS

var (
	// queryCache stores loaded SQL queries by their key
	queryCache = make(map[string]string)
	loadOnce   sync.Once
)

// LoadQueries loads all SQL queries from the embedded filesystem. Safe to call more than once.
func LoadQueries() {
	loadOnce.Do(func() {
		util.LogInfo("Loading SQL queries...")

		err := fs.WalkDir(queriesFS, "queries", func(filePath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(filePath, ".sql") {
				return nil
			}

			content, err := queriesFS.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read query file %s: %w", filePath, err)
			}

			// queries/quota/get_quota.sql -> quota.get_quota
			key := strings.TrimSuffix(filePath, path.Ext(filePath))
			key = strings.TrimPrefix(key, "queries/")
			key = strings.ReplaceAll(key, "/", ".")
			queryCache[key] = string(content)
			return nil
		})
		if err != nil {
			util.HandleFatalError(err, logrus.Fields{"context": "loading SQL queries"})
		}
		util.LogInfo(fmt.Sprintf("Loaded %d SQL queries", len(queryCache)))
	})
}

// GetQuery returns a cached SQL query by its key
// For example: GetQuery("quota.get_quota")
func GetQuery(key string) string {
	LoadQueries()
	query, exists := queryCache[key]
	if !exists {
		util.HandleErrorAtCallLevel(fmt.Errorf("query not found: %s", key), 2)
		return ""
	}
	return query
}
