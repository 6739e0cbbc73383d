package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ==================== 分区表定义 ====================

// PartitionedTable 按月分区的表
type PartitionedTable struct {
	Name           string
	RetentionMonth int // 保留月数，0 表示永久
	DDL            string
}

// aiCallLogsDDL 调用日志主表，按 created_at 月度 RANGE 分区
// AICallLog 不走 AutoMigrate，主键要把分区键包含进来
const aiCallLogsDDL = `
CREATE TABLE ai_call_logs (
    id            BIGSERIAL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    client_id     BIGINT NOT NULL DEFAULT 0,
    flow_id       BIGINT NOT NULL DEFAULT 0,
    job_id        BIGINT NOT NULL DEFAULT 0,
    call_type     VARCHAR(32) NOT NULL DEFAULT '',
    model_name    VARCHAR(64) NOT NULL DEFAULT '',
    image_count   INT NOT NULL DEFAULT 0,
    video_seconds INT NOT NULL DEFAULT 0,
    duration_ms   BIGINT NOT NULL DEFAULT 0,
    cost_usd      DECIMAL(10,6) NOT NULL DEFAULT 0,
    status        VARCHAR(32) NOT NULL DEFAULT 'success',
    error_msg     VARCHAR(1024) NOT NULL DEFAULT '',
    PRIMARY KEY (id, created_at)
) PARTITION BY RANGE (created_at);

CREATE INDEX idx_ai_call_logs_client ON ai_call_logs (client_id, created_at);
CREATE INDEX idx_ai_call_logs_flow   ON ai_call_logs (flow_id);
CREATE INDEX idx_ai_call_logs_job    ON ai_call_logs (job_id);
`

// PartitionedTables 本服务所有分区表
// 调用日志量大且只增不改，按月分区、保留一年
var PartitionedTables = []PartitionedTable{
	{Name: "ai_call_logs", RetentionMonth: 12, DDL: aiCallLogsDDL},
}

// ==================== 分区管理器 ====================

// PartitionManager 月度分区的创建与回收
type PartitionManager struct {
	db     *gorm.DB
	tables []PartitionedTable
}

// NewPartitionManager 创建分区管理器
func NewPartitionManager(db *gorm.DB) *PartitionManager {
	return &PartitionManager{db: db, tables: PartitionedTables}
}

// InitTables 创建分区主表（如不存在）
func (m *PartitionManager) InitTables(ctx context.Context) error {
	for _, table := range m.tables {
		exists, err := m.tableExists(ctx, table.Name)
		if err != nil {
			return fmt.Errorf("检查表 %s 失败: %w", table.Name, err)
		}
		if exists {
			continue
		}

		log.Printf("[Partition] 创建分区主表 %s ...", table.Name)
		if err := m.db.WithContext(ctx).Exec(table.DDL).Error; err != nil {
			return fmt.Errorf("创建表 %s 失败: %w", table.Name, err)
		}
	}
	return nil
}

// EnsureFuturePartitions 确保当月起未来 N 个月的分区存在
func (m *PartitionManager) EnsureFuturePartitions(ctx context.Context, monthsAhead int) error {
	now := time.Now()
	for i := 0; i <= monthsAhead; i++ {
		month := now.AddDate(0, i, 0)
		for _, table := range m.tables {
			if err := m.createPartition(ctx, table.Name, month); err != nil {
				log.Printf("[Partition] 创建 %s 分区失败: %v", table.Name, err)
			}
		}
	}
	return nil
}

func (m *PartitionManager) createPartition(ctx context.Context, tableName string, month time.Time) error {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	name := partitionName(tableName, start)

	exists, err := m.tableExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	sql := fmt.Sprintf(
		`CREATE TABLE %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		name, tableName,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
	)
	if err := m.db.WithContext(ctx).Exec(sql).Error; err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return err
	}

	log.Printf("[Partition] 创建分区 %s", name)
	return nil
}

// DropExpiredPartitions 按各表保留期删除过期分区
func (m *PartitionManager) DropExpiredPartitions(ctx context.Context) (int, error) {
	dropped := 0
	for _, table := range m.tables {
		if table.RetentionMonth == 0 {
			continue
		}

		cutoff := time.Now().AddDate(0, -table.RetentionMonth, 0)
		cutoff = time.Date(cutoff.Year(), cutoff.Month(), 1, 0, 0, 0, 0, time.UTC)

		names, err := m.listPartitions(ctx, table.Name)
		if err != nil {
			log.Printf("[Partition] 查询 %s 分区失败: %v", table.Name, err)
			continue
		}

		for _, name := range names {
			month, err := parsePartitionMonth(name, table.Name)
			if err != nil {
				continue
			}
			if !month.Before(cutoff) {
				continue
			}

			log.Printf("[Partition] 删除过期分区 %s", name)
			if err := m.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + name).Error; err != nil {
				log.Printf("[Partition] 删除 %s 失败: %v", name, err)
				continue
			}
			dropped++
		}
	}
	return dropped, nil
}

func (m *PartitionManager) tableExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM pg_tables
		WHERE schemaname = 'public' AND tablename = ?
	`, name).Scan(&count).Error
	return count > 0, err
}

func (m *PartitionManager) listPartitions(ctx context.Context, tableName string) ([]string, error) {
	var names []string
	err := m.db.WithContext(ctx).Raw(`
		SELECT child.relname
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		WHERE parent.relname = ?
		ORDER BY child.relname
	`, tableName).Scan(&names).Error
	return names, err
}

func partitionName(tableName string, month time.Time) string {
	return fmt.Sprintf("%s_y%dm%02d", tableName, month.Year(), month.Month())
}

func parsePartitionMonth(partitionName, tableName string) (time.Time, error) {
	suffix := strings.TrimPrefix(partitionName, tableName+"_y")
	var year, month int
	if _, err := fmt.Sscanf(suffix, "%dm%d", &year, &month); err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// ==================== 分区维护任务 ====================

// PartitionTask 每日补未来分区、清过期分区
type PartitionTask struct {
	manager      *PartitionManager
	futureMonths int
	interval     time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewPartitionTask 创建分区维护任务
func NewPartitionTask(manager *PartitionManager) *PartitionTask {
	return &PartitionTask{
		manager:      manager,
		futureMonths: 3,
		interval:     24 * time.Hour,
		stopCh:       make(chan struct{}),
	}
}

// Start 启动任务，启动时先执行一轮
func (t *PartitionTask) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		t.execute()

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.execute()
			case <-t.stopCh:
				return
			}
		}
	}()

	log.Printf("[Partition] 分区维护任务已启动 (间隔=%v, 未来分区=%d月)", t.interval, t.futureMonths)
}

// Stop 停止任务
func (t *PartitionTask) Stop() {
	close(t.stopCh)
	t.wg.Wait()
	log.Println("[Partition] 分区维护任务已停止")
}

func (t *PartitionTask) execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := t.manager.EnsureFuturePartitions(ctx, t.futureMonths); err != nil {
		log.Printf("[Partition] 补未来分区失败: %v", err)
	}
	if dropped, err := t.manager.DropExpiredPartitions(ctx); err == nil && dropped > 0 {
		log.Printf("[Partition] 已删除 %d 个过期分区", dropped)
	}
}
