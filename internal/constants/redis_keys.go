package constants

// Redis Key 规范: {prefix}:{module}:{entity}:{unique_id}
const (
	// PrefixPlaceholder 键模板中的前缀占位符，由 redis.key_prefix 替换
	PrefixPlaceholder = "{prefix}"
	// DefaultKeyPrefix 未配置前缀时使用
	DefaultKeyPrefix = "recruit"

	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// EntityDescription 岗位描述文本
	EntityDescription = "description"

	// JobDescriptionKey 岗位描述缓存 (STRING)
	// 格式: {prefix}:job:description:{jobID}
	JobDescriptionKey = PrefixPlaceholder + ":" + JobModulePrefix + ":" + EntityDescription + ":"
)
