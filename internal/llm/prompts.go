package llm

const rerankPrompt = `You are a relevance judge for a research evidence retriever. Score how well each document answers the query on a 0-100 scale, where 100 means the document directly addresses the query and 0 means it is unrelated.

Query: %s

Documents (%d total):
%s
Respond ONLY with a JSON array of %d integer scores in document order. No markdown, no explanation. Example: [85, 12, 40]`
