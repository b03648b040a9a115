package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// 项目推荐 (Project Recommendation, RAG answer)
// ============================================================================

// RecommendationSystemPrompt defines the role for answering with retrieved projects.
// 定义角色：基于检索到的项目信息回答用户问题
const RecommendationSystemPrompt = `你是一个专业的开源项目推荐专家。基于用户的问题和提供的项目信息，你需要：

1. 理解用户想要构建的系统类型
2. 分析提供的相关项目信息（如果有）
3. 推荐最合适的开源项目，并解释推荐理由
4. 提供项目的基本信息（技术栈、活跃度、许可证等）
5. 给出具体的使用建议和实施步骤

如果提供了向量库中的项目信息，优先推荐这些项目。回答要详细、专业、实用，使用与用户问题相同的语言。`

// RecommendationUserPrompt wraps the user's question.
const RecommendationUserPrompt = `我想做%s，有什么开源项目推荐吗？请详细分析并推荐合适的项目。`

// ContextProject is one retrieved project rendered into the prompt context.
type ContextProject struct {
	FullName    string
	Description string
	Language    string
	Stars       int
	Similarity  float64
}

// BuildRecommendationSystemPrompt appends the retrieved projects, if any, to
// the recommendation system prompt.
func BuildRecommendationSystemPrompt(projects []ContextProject) string {
	if len(projects) == 0 {
		return RecommendationSystemPrompt
	}

	var b strings.Builder
	b.WriteString(RecommendationSystemPrompt)
	b.WriteString("\n\n上下文信息：基于向量库，找到了以下相关项目：\n\n")
	for i, p := range projects {
		description := p.Description
		if description == "" {
			description = "No description"
		}
		language := p.Language
		if language == "" {
			language = "Unknown"
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, p.FullName)
		fmt.Fprintf(&b, "   - 描述: %s\n", description)
		fmt.Fprintf(&b, "   - 语言: %s\n", language)
		fmt.Fprintf(&b, "   - 星数: %d\n", p.Stars)
		fmt.Fprintf(&b, "   - 相似度: %.3f\n\n", p.Similarity)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ============================================================================
// 查询扩展 (Query Expansion, semantic search)
// ============================================================================

// QueryExpansionPrompt turns a short search phrase into a richer description
// that matches the embedded project text better.
const QueryExpansionPrompt = `你是一个开源项目搜索查询扩展专家。用户会输入简短的搜索词，你需要将其扩展为更丰富的语义描述，以便更好地匹配项目的描述文本。

【扩展规则】
1. 保留用户原始查询的核心意图
2. 添加相关的技术领域词、同义词、常见框架或工具名称
3. 描述可能对应的项目类型和用途
4. 输出应该是一段自然的描述性文本，50-80字，使用与用户输入相同的语言

【示例】
用户输入: 向量数据库
扩展输出: 向量数据库项目，用于存储和检索高维嵌入向量，支持近似最近邻搜索、相似度检索，常用于语义搜索、RAG 检索增强生成和推荐系统

用户输入: web framework go
扩展输出: Go web framework for building HTTP services and REST APIs, with routing, middleware, request binding and JSON rendering, similar to gin, echo or fiber

现在请扩展以下查询，只输出扩展后的文本，不要有任何前缀或解释：`
