package config

import "time"

// Fixed locations used when neither flags nor a config file override them.
const (
	DefaultLogFile        = "/var/log/llmhost-setup.log"
	DefaultScriptCopyPath = "/usr/local/sbin/llmhost-setup"
	DefaultEnvFile        = "/etc/llmhost/runner.env"
)

// Default returns the built-in provisioning plan.
func Default() Config {
	return Config{
		LogFile:        DefaultLogFile,
		LogLevel:       "info",
		ScriptCopyPath: DefaultScriptCopyPath,
		EnvFile:        DefaultEnvFile,
		Packages: Packages{
			Base: []string{
				"curl",
				"wget",
				"ca-certificates",
				"git",
				"pciutils",
				"python3",
				"python3-pip",
				"build-essential",
			},
			Accel: []string{"libopenblas-dev"},
		},
		Runner: Runner{
			Binary:            "ollama",
			InstallerURL:      "https://ollama.com/install.sh",
			MaxInstallerBytes: 4 << 20,
			APIURL:            "http://127.0.0.1:11434",
			PullMethod:        "cli",
		},
		Tuning: Tuning{
			Variable:    "OLLAMA_NUM_PARALLEL",
			Policy:      "observed",
			LowRAMGiB:   16,
			HighRAMGiB:  32,
			MinParallel: 1,
			MaxParallel: 16,
			Divisor:     8,
			Offset:      2,
		},
		Tools: []Tool{
			{Name: "jq", Binary: "jq", Packages: []string{"jq"}, Required: true},
			{Name: "htop", Binary: "htop", Packages: []string{"htop"}},
			{Name: "nvtop", Binary: "nvtop", Packages: []string{"nvtop"}, Fallback: "pip3 install --user nvitop"},
			{Name: "lm-sensors", Binary: "sensors", Packages: []string{"lm-sensors"}},
		},
		Assistant: Tool{
			Name:     "shell-gpt",
			Binary:   "sgpt",
			Fallback: "pip3 install --user shell-gpt",
		},
		Catalog: []Model{
			{Name: "llama3.2:1b", MinRAMGiB: 4, Description: "Llama 3.2 1B, fast general chat"},
			{Name: "llama3.2:3b", MinRAMGiB: 8, Description: "Llama 3.2 3B, general chat"},
			{Name: "phi3:mini", MinRAMGiB: 8, Description: "Phi-3 Mini 3.8B, reasoning on small hosts"},
			{Name: "mistral:7b", MinRAMGiB: 16, Description: "Mistral 7B instruct"},
			{Name: "llama3.1:8b", MinRAMGiB: 16, Description: "Llama 3.1 8B instruct"},
			{Name: "gemma2:9b", MinRAMGiB: 16, Description: "Gemma 2 9B"},
			{Name: "codellama:13b", MinRAMGiB: 24, Description: "Code Llama 13B, code completion"},
			{Name: "qwen2.5:14b", MinRAMGiB: 24, Description: "Qwen 2.5 14B, multilingual"},
			{Name: "deepseek-r1:32b", MinRAMGiB: 48, Description: "DeepSeek-R1 32B distill, reasoning"},
			{Name: "llama3.1:70b", MinRAMGiB: 64, Description: "Llama 3.1 70B instruct"},
		},
		Timeouts: Timeouts{
			Command:  Duration(30 * time.Minute),
			Download: Duration(5 * time.Minute),
			Pull:     Duration(60 * time.Minute),
		},
	}
}
