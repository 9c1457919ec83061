package repository

import (
	"context"
	"database/sql"
	"errors"
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/util"

	"gorm.io/gorm"
)

// 先修链展开的最大深度，防止异常数据导致无限递归
const maxChainDepth = 50

type RelationshipRepository struct {
	DB *gorm.DB
}

func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{DB: db}
}

func (r *RelationshipRepository) withEndpoints(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Preload("SourceConcept").Preload("TargetConcept")
}

func (r *RelationshipRepository) FindByID(ctx context.Context, id string) (*model.ConceptRelationship, error) {
	var rel model.ConceptRelationship
	err := r.withEndpoints(ctx).Where("id = ? AND is_active = ?", id, true).First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// FindByConcept 返回以该知识点为起点或终点的启用关系
func (r *RelationshipRepository) FindByConcept(ctx context.Context, conceptID string, relType model.RelationshipType) ([]model.ConceptRelationship, error) {
	var rels []model.ConceptRelationship
	query := r.withEndpoints(ctx).
		Where("(source_concept_id = ? OR target_concept_id = ?) AND is_active = ?", conceptID, conceptID, true)
	if relType != "" {
		query = query.Where("relationship_type = ?", relType)
	}
	err := query.Order("created_at asc").Find(&rels).Error
	return rels, err
}

// FindIncoming 指向该知识点的关系，即 source 是它的前置
func (r *RelationshipRepository) FindIncoming(ctx context.Context, conceptID string, relType model.RelationshipType) ([]model.ConceptRelationship, error) {
	var rels []model.ConceptRelationship
	err := r.withEndpoints(ctx).
		Where("target_concept_id = ? AND relationship_type = ? AND is_active = ?", conceptID, relType, true).
		Order("created_at asc").
		Find(&rels).Error
	return rels, err
}

func (r *RelationshipRepository) FindOutgoing(ctx context.Context, conceptID string, relType model.RelationshipType) ([]model.ConceptRelationship, error) {
	var rels []model.ConceptRelationship
	err := r.withEndpoints(ctx).
		Where("source_concept_id = ? AND relationship_type = ? AND is_active = ?", conceptID, relType, true).
		Order("created_at asc").
		Find(&rels).Error
	return rels, err
}

// FindAllActive 不加载端点，用于全图计算
func (r *RelationshipRepository) FindAllActive(ctx context.Context, types ...model.RelationshipType) ([]model.ConceptRelationship, error) {
	var rels []model.ConceptRelationship
	query := r.DB.WithContext(ctx).Where("is_active = ?", true)
	if len(types) > 0 {
		query = query.Where("relationship_type IN ?", types)
	}
	err := query.Find(&rels).Error
	return rels, err
}

func (r *RelationshipRepository) Create(ctx context.Context, rel *model.ConceptRelationship) error {
	return r.DB.WithContext(ctx).Omit("SourceConcept", "TargetConcept").Create(rel).Error
}

// CreateIfAcyclic 在同一事务中完成环检测与插入，形成环时返回 util.ErrCircularDependency
func (r *RelationshipRepository) CreateIfAcyclic(ctx context.Context, rel *model.ConceptRelationship) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cyclic, err := wouldCreateCycle(tx, rel.SourceConceptID, rel.TargetConceptID)
		if err != nil {
			return err
		}
		if cyclic {
			return util.ErrCircularDependency
		}
		return tx.Omit("SourceConcept", "TargetConcept").Create(rel).Error
	}, r.txOptions()...)
}

// WouldCreateCycle 检查新增 source->target 先修边后是否成环
func (r *RelationshipRepository) WouldCreateCycle(ctx context.Context, sourceID, targetID string) (bool, error) {
	return wouldCreateCycle(r.DB.WithContext(ctx), sourceID, targetID)
}

func (r *RelationshipRepository) txOptions() []*sql.TxOptions {
	switch r.DB.Dialector.Name() {
	case "postgres", "mysql":
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return nil
}

const reachableSQL = `
WITH RECURSIVE reachable(concept_id) AS (
	SELECT target_concept_id FROM concept_relationships
	WHERE source_concept_id = ? AND relationship_type = ? AND is_active = ?
	UNION
	SELECT cr.target_concept_id FROM concept_relationships cr
	JOIN reachable rc ON cr.source_concept_id = rc.concept_id
	WHERE cr.relationship_type = ? AND cr.is_active = ?
)
SELECT COUNT(*) FROM reachable WHERE concept_id = ?`

// 新边 source->target 成环，当且仅当 target 已能沿先修边到达 source
func wouldCreateCycle(db *gorm.DB, sourceID, targetID string) (bool, error) {
	if sourceID == targetID {
		return true, nil
	}
	var count int64
	err := db.Raw(reachableSQL,
		targetID, model.RelationshipPrerequisite, true,
		model.RelationshipPrerequisite, true,
		sourceID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// (concept_id, depth) 去重后每层最多展开一次，菱形结构不会按路径数膨胀
const prerequisiteChainSQL = `
WITH RECURSIVE chain(concept_id, depth) AS (
	SELECT source_concept_id, 1 FROM concept_relationships
	WHERE target_concept_id = ? AND relationship_type = ? AND is_active = ?
	UNION
	SELECT cr.source_concept_id, ch.depth + 1 FROM concept_relationships cr
	JOIN chain ch ON cr.target_concept_id = ch.concept_id
	WHERE cr.relationship_type = ? AND cr.is_active = ? AND ch.depth < ?
)
SELECT c.id AS concept_id, c.name AS concept_name, MIN(ch.depth) AS depth
FROM chain ch
JOIN concepts c ON c.id = ch.concept_id
WHERE c.is_active = ? AND c.id <> ?
GROUP BY c.id, c.name
ORDER BY depth asc, c.name asc`

// PrerequisiteChain 递归展开全部先修知识点，depth 为最短距离
func (r *RelationshipRepository) PrerequisiteChain(ctx context.Context, conceptID string) ([]model.PrerequisiteChainItem, error) {
	var items []model.PrerequisiteChainItem
	err := r.DB.WithContext(ctx).Raw(prerequisiteChainSQL,
		conceptID, model.RelationshipPrerequisite, true,
		model.RelationshipPrerequisite, true, maxChainDepth,
		true, conceptID,
	).Scan(&items).Error
	return items, err
}

func (r *RelationshipRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.ConceptRelationship, error) {
	result := r.DB.WithContext(ctx).Model(&model.ConceptRelationship{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *RelationshipRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&model.ConceptRelationship{}).Where("id = ?", id).Update("is_active", false)
	return result.RowsAffected > 0, result.Error
}
