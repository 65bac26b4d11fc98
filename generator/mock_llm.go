package generator

import "context"

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// 返回符合输出规范的固定 JSON 稿件。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, _ []Message) (string, error) {
	return `{
  "title": "示例：AI行业早报",
  "digest": "这是一篇本地调试用的示例文章，验证从生成、配图到上传草稿的完整流程。",
  "content": "<p style=\"font-size:18px;font-weight:bold;color:#333;margin:20px 0 10px 0;\"><strong>示例：AI行业早报</strong></p><figure1><p style=\"font-size:15px;line-height:1.8;color:#333;margin-bottom:16px;text-align:justify;\">这里是自动生成的正文段落。</p>",
  "cover_prompt": "科技感蓝色渐变背景，抽象神经网络",
  "figure_prompt_list": ["未来城市天际线，霓虹光效"]
}`, nil
}
