package content

import (
	"fmt"
	"strings"
)

// TopicCategory is one group of a profile's curated topic catalog.
type TopicCategory struct {
	Category string   `json:"category"`
	Icon     string   `json:"icon"`
	Topics   []string `json:"topics"`
}

// Direction selects which neighbour an adjacent lookup returns.
type Direction int

const (
	Next Direction = iota
	Previous
)

// String returns "next" or "prev".
func (d Direction) String() string {
	if d == Previous {
		return "prev"
	}
	return "next"
}

// ParseDirection accepts "next", "prev" and "previous", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		return Next, nil
	case "prev", "previous":
		return Previous, nil
	}
	return Next, fmt.Errorf("content: unknown direction %q", s)
}

// AdjacentTopic returns the catalog topic after or before current. The
// catalog is read as one list in category order, so the last topic of a
// category is followed by the first of the next. Matching ignores case and
// surrounding space. It reports false at either end of the catalog and for a
// topic the catalog does not contain.
func (p Profile) AdjacentTopic(current string, dir Direction) (string, bool) {
	var all []string
	for _, c := range p.Topics {
		all = append(all, c.Topics...)
	}
	want := strings.TrimSpace(current)
	for i, t := range all {
		if !strings.EqualFold(t, want) {
			continue
		}
		j := i + 1
		if dir == Previous {
			j = i - 1
		}
		if j < 0 || j >= len(all) {
			return "", false
		}
		return all[j], true
	}
	return "", false
}

var linuxTopics = []TopicCategory{
	{"Process Scheduling (SCHED)", "cpu", []string{
		"struct task_struct Internals",
		"CFS (Completely Fair Scheduler) Logic",
		"Runqueues & Load Balancing",
		"Context Switching (switch_to)",
		"Real-time Scheduling Classes (RT/DL)",
		"cgroups v2 Resource Control",
	}},
	{"Memory Management (MM)", "memory", []string{
		"Virtual Memory Areas (VMA)",
		"Page Tables (PGD/P4D/PUD/PMD/PTE)",
		"SLUB Allocator Internals",
		"Page Reclaim & LRU Lists",
		"Transparent Huge Pages (THP)",
		"OOM Killer Mechanics",
	}},
	{"Kernel Synchronization", "security", []string{
		"RCU (Read-Copy-Update) Implementation",
		"Spinlocks vs Mutexes vs Semaphores",
		"Memory Barriers & Atomics",
		"Per-CPU Variables",
		"Lockdep Validator",
	}},
	{"Networking Stack (NET)", "network", []string{
		"struct sk_buff Architecture",
		"NAPI & Interrupt Coalescing",
		"Netfilter Hooks & iptables",
		"eBPF & XDP (Express Data Path)",
		"TCP State Machine (tcp_input.c)",
	}},
	{"Virtual File System (VFS)", "disk", []string{
		"dentry & inode Caches",
		"Superblock Operations",
		"Bio Structure & Block Layer",
		"Page Cache & Writeback",
		"OverlayFS Architecture",
	}},
	{"Real-Time OS (RTOS)", "rtos", []string{
		"FreeRTOS Scheduler (Preemptive vs Co-op)",
		"Zephyr Kernel Architecture",
		"Context Switching on Cortex-M (PendSV)",
		"Priority Inversion & Inheritance",
		"Task Notifications vs Queues",
		"Zephyr Device Tree & Driver Model",
	}},
	{"Virtualization & Hypervisors", "vm", []string{
		"KVM (Kernel-based Virtual Machine) Internals",
		"QEMU/KVM ioctl Interaction",
		"Virtio Drivers & Ring Buffers",
		"Intel VT-x / EPT Implementation",
		"SR-IOV (Single Root I/O Virtualization)",
		"Type 1 vs Type 2 Hypervisors",
	}},
	{"Containers & Kubernetes", "container", []string{
		"Linux Namespaces (mnt, pid, net)",
		"Container Runtimes (runc vs containerd)",
		"Kubernetes Scheduler Logic",
		"etcd Consistency (Raft Protocol)",
		"K8s Networking (CNI & Overlay Networks)",
		"Service Mesh Sidecar Proxies",
	}},
}

var databaseTopics = []TopicCategory{
	{"MySQL 8.0 Internals", "mysql", []string{
		"InnoDB Buffer Pool Architecture",
		"Redo Log & Mini-Transactions (MTR)",
		"Undo Log & MVCC Implementation",
		"B+ Tree Index Structure (page0page.cc)",
		"Doublewrite Buffer Mechanism",
		"Adaptive Hash Index",
		"MySQL Thread Handling (one-thread-per-connection)",
		"Query Optimizer & Cost Model",
		"Replication: Binlog Formats",
		"Group Replication (Paxos)",
		"Performance Schema Internals",
	}},
	{"PostgreSQL Internals", "postgres", []string{
		"Process Architecture (Postmaster)",
		"Shared Buffers & Clock Sweep",
		"WAL (Write-Ahead Logging) Architecture",
		"Heap Tuples & TOAST",
		"MVCC & Visibility Maps",
		"Vacuum & Autovacuum Logic",
		"Query Planner & Genetic Optimizer",
		"GiST & GIN Index Internals",
		"Logical Decoding & Replication slots",
		"Parallel Query Execution",
	}},
	{"MyRocks & Storage Engines", "rocksdb", []string{
		"LSM-Tree (Log Structured Merge) Fundamentals",
		"RocksDB MemTable & Skiplists",
		"SSTable File Formats",
		"Bloom Filters in Storage",
		"Compaction Strategies (Leveled vs Tiered)",
		"MyRocks Transaction Handling (2PC)",
		"Write Stalls & Flow Control",
		"Column Family Architecture",
	}},
	{"Redis & In-Memory DB", "redis", []string{
		"Redis Event Loop (ae.c)",
		"Simple Dynamic Strings (SDS)",
		"Redis Dictionary & Rehashing (dict.c)",
		"Skiplist Implementation (zset)",
		"RDB vs AOF Persistence Internals",
		"Redis Cluster Gossip Protocol",
		"Redis 6.0 Threaded I/O",
		"Key Eviction Policies (LRU/LFU)",
	}},
	{"GPU & Vector Databases", "gpu", []string{
		"GPU-Accelerated Query Compilation (JIT)",
		"Vector Indexing Algorithms (HNSW, IVF)",
		"SIMD & Vectorization (AVX-512)",
		"CUDA Kernel Optimization for Join/Group By",
		"Memory Coalescing & PCIe Bandwidth",
		"Columnar Storage on GPU (Apache Arrow)",
		"Similarity Search & Embeddings",
	}},
	{"Distributed Database Theory", "cloud", []string{
		"CAP Theorem in Practice",
		"Raft Consensus Algorithm",
		"Google Spanner (TrueTime)",
		"CockroachDB Architecture",
		"Distributed Transactions (2PC/3PC)",
		"Sharding Strategies",
		"Consistent Hashing",
		"Vector Clocks & Version Vectors",
	}},
}

var poemTopics = []TopicCategory{
	{"唐詩三百首 (Tang Dynasty)", "tang", []string{
		"王勃 - 滕王閣序 (Preface to Prince Teng's Pavilion)",
		"李白 - 靜夜思 (Thoughts on a Silent Night)",
		"李白 - 將進酒 (Bring in the Wine)",
		"白居易 - 琵琶行 (Song of the Pipa)",
		"杜甫 - 春望 (Spring View)",
		"杜甫 - 登高 (Climbing High)",
		"王維 - 鹿柴 (Deer Enclosure)",
		"王維 - 九月九日憶山東兄弟",
		"孟浩然 - 春曉 (Spring Dawn)",
		"白居易 - 賦得古原草送別",
		"柳宗元 - 江雪 (River Snow)",
		"王之渙 - 登鸛雀樓",
		"杜牧 - 清明 (Qingming)",
		"李商隱 - 無題 (Untitled)",
		"賀知章 - 回鄉偶書",
	}},
	{"宋詞精選 (Song Ci)", "song", []string{
		"蘇軾 - 水調歌頭 (When Will the Moon Be Clear and Bright)",
		"蘇軾 - 念奴嬌·赤壁懷古",
		"李清照 - 聲聲慢 (Slow, Slow Song)",
		"李清照 - 一剪梅",
		"辛棄疾 - 青玉案·元夕",
		"岳飛 - 滿江紅 (River All Red)",
		"柳永 - 雨霖鈴",
		"歐陽修 - 生查子·元夕",
		"陸游 - 釵頭鳳",
	}},
	{"詩經 & 楚辭 (Pre-Qin)", "classic", []string{
		"詩經 - 關雎 (Guan Ju)",
		"詩經 - 蒹葭 (The Reeds)",
		"詩經 - 桃夭",
		"屈原 - 離騷 (Excerpts)",
		"古詩十九首 - 迢迢牽牛星",
	}},
	{"漢魏六朝 (Han & Wei)", "han", []string{
		"曹操 - 短歌行 (Short Song Style)",
		"曹操 - 龜雖壽",
		"曹植 - 七步詩 (Seven Steps Verse)",
		"陶淵明 - 飲酒 (Drinking Wine)",
		"陶淵明 - 歸園田居",
		"木蘭辭 (Ballad of Mulan)",
	}},
	{"元曲 & 其他 (Yuan & Others)", "modern", []string{
		"馬致遠 - 天淨沙·秋思",
		"關漢卿 - 竇娥冤 (Excerpt)",
		"納蘭性德 - 木蘭花·擬古決絕詞",
		"龔自珍 - 己亥雜詩",
	}},
}

var interviewTopics = []TopicCategory{
	{"AI & LLM Engineering", "ai", []string{
		"Transformer Architecture (Attention Mechanism)",
		"LLM Training Pipeline (Pre-training vs SFT)",
		"Distributed Training (Data/Model/Pipeline Parallelism)",
		"Inference Optimization (KV Cache, PagedAttention)",
		"Fine-tuning Techniques (LoRA, QLoRA, PEFT)",
		"Model Quantization (INT8, FP4, AWQ)",
		"RAG (Retrieval Augmented Generation) Architecture",
		"RLHF (Reinforcement Learning from Human Feedback)",
		"Deployment at Scale (vLLM, TGI, Triton)",
		"AI Agent Design Patterns (ReAct, Plan-and-Solve)",
		"Vector Database Internals for AI",
	}},
	{"Coding Patterns (Algo)", "algo", []string{
		"Sliding Window Pattern",
		"Two Pointers Technique",
		"Fast & Slow Pointers (Cycle Detection)",
		"Merge Intervals Pattern",
		"Cyclic Sort Pattern",
		"In-place Reversal of LinkedList",
		"Tree Breadth First Search (BFS)",
		"Tree Depth First Search (DFS)",
		"Two Heaps Pattern",
		"Top 'K' Elements",
		"Modified Binary Search",
		"Dynamic Programming: 0/1 Knapsack",
	}},
	{"Modern C++ & Concurrency", "code", []string{
		"C++ Memory Model & Atomic Ordering",
		"C++17: Parallel Algorithms (std::execution)",
		"C++17: std::shared_mutex & scoped_lock",
		"C++20: Coroutines (co_await) Internals",
		"C++20: std::jthread & Auto-joining",
		"C++20: Semaphores, Latches & Barriers",
		"C++20: Atomic wait/notify & std::atomic_ref",
		"C++23: std::expected & Monadic Ops",
		"C++26: Hazard Pointers (RCU) & Reflection",
		"Lock-free Programming (CAS Loop)",
		"False Sharing & Cache Locality",
	}},
	{"System Design (High Level)", "system", []string{
		"Design a URL Shortener (TinyURL)",
		"Design Instagram (News Feed)",
		"Design a Rate Limiter",
		"Design a Key-Value Store (Dynamo)",
		"Design a Chat System (WhatsApp)",
		"Design YouTube (Video Streaming)",
		"Design a Web Crawler",
		"Design Uber (Location Service)",
		"Design Google Drive (File Storage)",
		"Design a Notification Service",
	}},
	{"System Design Concepts", "cloud", []string{
		"CAP Theorem & PACELC",
		"Consistent Hashing",
		"Load Balancing Algorithms",
		"Caching Strategies (Write-through/back)",
		"Database Sharding & Partitioning",
		"Leader-Follower Replication",
		"Microservices vs Monolith",
		"Message Queues (Kafka/RabbitMQ)",
		"CDN & Edge Computing",
	}},
	{"Behavioral (STAR Method)", "behavior", []string{
		"Tell me about a time you failed",
		"Conflict with a coworker",
		"Handling a tight deadline",
		"Disagreement with Manager",
		"Leading a team through ambiguity",
		"Technical Debt vs New Features",
		"Mentoring a junior engineer",
		"Proudest Technical Achievement",
	}},
	{"Language Specifics", "code", []string{
		"Java Memory Model & GC",
		"Python GIL (Global Interpreter Lock)",
		"Go Goroutines & Channels",
		"JavaScript Event Loop",
		"Rust Ownership & Borrowing",
	}},
}
