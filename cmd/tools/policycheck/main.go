package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"communityhub/internal/moderation"
)

// 用法: policycheck -policy config/policy.yaml -age 3 "some text" ...
// 未给出文本参数时逐行读取标准输入
func main() {
	policyPath := flag.String("policy", "", "策略文件路径，为空时使用内置策略")
	ageDays := flag.Int("age", 365, "作者账户天数")
	accountType := flag.String("type", string(moderation.AccountIndividual), "账户类型 INDIVIDUAL/CHARITY/COMPANY")
	admin := flag.Bool("admin", false, "作者是否为管理员")
	flag.Parse()

	policy := moderation.DefaultPolicy()
	if *policyPath != "" {
		p, err := moderation.LoadPolicy(*policyPath)
		if err != nil {
			log.Fatalf("加载策略失败: %v", err)
		}
		policy = p
	}

	pipeline, err := moderation.NewPipeline(policy)
	if err != nil {
		log.Fatalf("策略无效: %v", err)
	}

	typ, ok := moderation.ParseAccountType(*accountType)
	if !ok {
		log.Fatalf("未知账户类型: %s", *accountType)
	}
	account := moderation.AccountRiskInput{AccountAgeDays: *ageDays, IsAdmin: *admin, AccountType: typ}

	enc := json.NewEncoder(os.Stdout)
	check := func(text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		d := pipeline.Decide(text, account)
		if err := enc.Encode(map[string]any{"text": text, "decision": d}); err != nil {
			log.Fatalf("输出失败: %v", err)
		}
	}

	if flag.NArg() > 0 {
		for _, text := range flag.Args() {
			check(text)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		check(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "读取输入失败: %v\n", err)
		os.Exit(1)
	}
}
