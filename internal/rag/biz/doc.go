// Package biz 提供知识库服务的业务逻辑层。
//
// 该包将业务逻辑拆分为以下组件：
//   - Indexer: 负责文档入库（校验、提取、分块、写入、版本递增）
//   - Retriever: 负责词法检索（分词、打分、排序）
//   - Generator: 负责生成（上下文构建、调用模型回答）
//   - AnswerCache: 按语料版本缓存回答
//   - Service: 组合以上组件，提供统一的服务接口
//   - AdminCommands: 解析并执行 #rag 管理命令
package biz
